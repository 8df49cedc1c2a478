// Package config provides configuration parsing for devgate projects.
//
// The configuration is stored in devgate.json next to the entry file or in
// one of its parent directories. A project without the file runs on
// defaults. This package handles loading, saving, and validating
// configuration.
//
// # Configuration File Structure
//
//	{
//	  "name": "my-app",
//	  "entry": "index.js",
//	  "assets": "assets",
//	  "dev": {
//	    "host": "localhost",
//	    "portMin": 8080,
//	    "portMax": 9000,
//	    "quiet": false,
//	    "renderInterval": "250ms",
//	    "ignore": ["*.log"],
//	    "clearErrorOnChange": false,
//	    "metricsAddr": ""
//	  },
//	  "build": {
//	    "output": "dist",
//	    "minify": true,
//	    "sourceMaps": false,
//	    "target": "es2020"
//	  },
//	  "log": {
//	    "level": "info",
//	    "file": "devgate.log",
//	    "pretty": true
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadForEntry("src/index.js")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Ports:", cfg.Dev.PortMin, cfg.Dev.PortMax)
package config
