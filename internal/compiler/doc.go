// Package compiler builds the artifacts served by the dev gateway.
//
// The Compiler interface is what the gateway and the dashboard consume:
// listeners receive a change event each time an artifact is rebuilt and an
// error event when a build fails, and accessors return the latest output
// of each kind.
//
// Bundler implements Compiler with esbuild. The entry file is bundled as
// ES modules with code splitting:
//
//	bundle.js        the entry
//	chunk-<hash>.js  shared and lazily imported code
//	bundle.css       CSS imported from JavaScript
//
// Alongside the bundle it produces the web manifest (the project's
// manifest.json or a generated default), the service worker
// (service-worker.js or sw.js, bundled standalone), the HTML document (the
// project's index.html with tags injected, or a generated shell) and the
// files under the assets directory.
//
// With Options.Watch, Run keeps an fsnotify watcher on the project and
// rebuilds only what a batch of changes affects.
package compiler
