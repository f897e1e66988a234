package template

import (
	"embed"

	"github.com/ixrcore/runtime/internal/profile"
)

//go:embed profiles/*.yaml
var shippedFS embed.FS

// LoadShippedTemplates loads the interaction profile templates built into
// the runtime binary (spec.md section 4.E's "shipped" profiles, as opposed
// to ones loaded from an integrator-supplied directory via LoadDir).
func LoadShippedTemplates() ([]*profile.Template, error) {
	return LoadDir(shippedFS, "profiles")
}
