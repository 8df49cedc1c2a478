// Package gateway maps HTTP requests to compiler outputs.
//
// Requests are matched against an ordered table of path patterns; the
// first match wins and anything unmatched is treated as a request for the
// HTML document:
//
//	/manifest.json              manifest
//	/service-worker.js, /sw.js  service worker
//	/<name>.js                  script chunk
//	/bundle.css                 stylesheet
//	/assets/<path>              static asset
//	anything else               document, keyed by the request URI
//
// Every response carries permissive CORS headers. Artifacts are gzipped
// when the client accepts it; a failed lookup answers 404 with the error
// message as a plain-text body.
package gateway
