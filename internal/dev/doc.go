// Package dev runs the development server: it turns compiler events into
// build state, draws the dashboard and serves artifacts over HTTP.
//
// # Architecture
//
//   - Aggregator: compiler.Listener that updates the state.BuildState and
//     estimates artifact sizes in the background
//   - Scheduler: throttles dashboard redraws (dev.renderInterval)
//   - Terminal: inline bubbletea program showing the latest frame
//   - Server: binds the first free port and serves the gateway
//
// # Usage
//
//	srv, err := dev.NewServer(dev.ServerOptions{
//	    Config:   cfg,
//	    Compiler: bundler,
//	    Logger:   log,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
//
// When every port in [dev.portMin, dev.portMax] is taken the error is shown
// on the dashboard and the server keeps running without a listener until
// ctx is done. Quiet mode (dev.quiet) disables the dashboard entirely.
package dev
