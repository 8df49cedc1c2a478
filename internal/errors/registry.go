package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid devgate.json",
		Detail:   "The devgate.json configuration file is malformed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Missing entry",
		Detail:   "No entry file was given on the command line or in devgate.json.",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port range",
		Detail:   "The configured port range is empty or outside 1-65535.",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E141": {
		Category: CategoryCLI,
		Message:  "Entry not found",
		Detail:   "The entry file does not exist.",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Output write failed",
		Detail:   "An artifact could not be written to the output directory.",
	},

	// ============================================
	// Server Errors (E200-E209)
	// ============================================

	"E200": {
		Category: CategoryServer,
		Message:  "No port available",
		Detail:   "Every port in the configured range is in use.",
	},
	"E201": {
		Category: CategoryServer,
		Message:  "Server stopped",
		Detail:   "The HTTP listener stopped unexpectedly.",
	},

	// ============================================
	// Build Errors (E210-E219)
	// ============================================

	"E210": {
		Category: CategoryBuild,
		Message:  "Build failed",
	},
	"E211": {
		Category: CategoryBuild,
		Message:  "Compiler setup failed",
		Detail:   "The bundler could not be created from the given options.",
	},

	// ============================================
	// Artifact Errors (E220-E239)
	// ============================================

	"E220": {
		Category: CategoryArtifact,
		Message:  "Artifact not found",
	},
	"E230": {
		Category: CategoryArtifact,
		Message:  "Compression failed",
	},
}
