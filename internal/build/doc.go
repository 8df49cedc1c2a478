// Package build produces a production build: one compile of the project,
// with every artifact written to the output directory.
//
// # Usage
//
//	builder := build.New(cfg, build.Options{Minify: true})
//	result, err := builder.Build(ctx)
//	if err != nil {
//	    return err
//	}
//
//	raw, gz := result.TotalSize()
//	fmt.Printf("Built in %s (%d bytes, %d gzipped)\n", result.Duration, raw, gz)
//
// # Output Structure
//
//	dist/
//	├── index.html          # Document
//	├── bundle.js           # Entry script
//	├── chunk-XXXXXXXX.js   # Shared chunks
//	├── bundle.css          # Imported CSS
//	├── manifest.json       # Web manifest
//	├── service-worker.js   # When the project has one
//	└── assets/             # Static files
package build
