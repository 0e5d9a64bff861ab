// Package duration holds the single step-duration heuristic table that
// every provider parser consults (spec.md §4.1: "The table is the single
// source of truth; all parsers consult it.").
package duration

import "strings"

const (
	Checkout          = 12.0
	LanguageSetup     = 15.0
	DependencyInstall = 150.0 // midpoint of the 120-180 range
	CompileOrTest     = 270.0 // midpoint of the 240-300 range
	Lint              = 60.0
	ContainerBuild    = 300.0
	ArtifactUpload    = 15.0
	GenericShell      = 30.0
	UnknownAction     = 20.0
)

type rule struct {
	substr string
	secs   float64
}

// commandRules is ordered most-specific first; the first match wins.
var commandRules = []rule{
	{"npm ci", DependencyInstall},
	{"npm install", DependencyInstall},
	{"yarn install", DependencyInstall},
	{"pnpm install", DependencyInstall},
	{"pip install", DependencyInstall},
	{"bundle install", DependencyInstall},
	{"composer install", DependencyInstall},
	{"go mod download", DependencyInstall},
	{"cargo build", CompileOrTest},
	{"cargo test", CompileOrTest},
	{"cargo clippy", CompileOrTest},
	{"./gradlew", CompileOrTest},
	{"gradle", CompileOrTest},
	{"mvn", CompileOrTest},
	{"./mvnw", CompileOrTest},
	{"npm run build", CompileOrTest},
	{"npm test", CompileOrTest},
	{"npm run test", CompileOrTest},
	{"yarn build", CompileOrTest},
	{"yarn test", CompileOrTest},
	{"go build", CompileOrTest},
	{"go test", CompileOrTest},
	{"pytest", CompileOrTest},
	{"lint", Lint},
	{"eslint", Lint},
	{"flake8", Lint},
	{"rubocop", Lint},
	{"docker build", ContainerBuild},
	{"docker-compose build", ContainerBuild},
	{"checkout", Checkout},
}

var actionRules = []rule{
	{"actions/checkout", Checkout},
	{"actions/setup-node", LanguageSetup},
	{"actions/setup-python", LanguageSetup},
	{"actions/setup-go", LanguageSetup},
	{"actions/setup-java", LanguageSetup},
	{"actions/cache", 5.0},
	{"actions/upload-artifact", ArtifactUpload},
	{"actions/download-artifact", ArtifactUpload},
}

// EstimateCommand returns the heuristic duration for a shell/script
// command body. Unmatched commands default to GenericShell.
func EstimateCommand(cmd string) float64 {
	lower := strings.ToLower(cmd)
	for _, r := range commandRules {
		if strings.Contains(lower, r.substr) {
			return r.secs
		}
	}
	return GenericShell
}

// EstimateAction returns the heuristic duration for a third-party action
// reference (GitHub Actions `uses:`, or an equivalent provider construct).
// Unmatched actions default to UnknownAction.
func EstimateAction(uses string) float64 {
	lower := strings.ToLower(uses)
	for _, r := range actionRules {
		if strings.Contains(lower, r.substr) {
			return r.secs
		}
	}
	return UnknownAction
}

// IsDependencyInstaller reports whether a command string invokes a
// recognized dependency installer (spec.md §4.3 pass 3).
func IsDependencyInstaller(cmd string) bool {
	lower := strings.ToLower(cmd)
	for _, s := range []string{
		"npm ci", "npm install", "yarn install", "pnpm install",
		"pip install", "cargo build", "cargo test", "cargo clippy",
		"./gradlew", "gradle", "mvn", "./mvnw",
	} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Ecosystem classifies a dependency-installer command into the family the
// cache-gap finding and cache-injection transform key their shape on.
type Ecosystem string

const (
	EcosystemNode        Ecosystem = "node"
	EcosystemPip          Ecosystem = "pip"
	EcosystemCargo        Ecosystem = "cargo"
	EcosystemGradleMaven  Ecosystem = "gradle_maven"
	EcosystemUnknown      Ecosystem = ""
)

// ClassifyEcosystem maps an installer command to its ecosystem.
func ClassifyEcosystem(cmd string) Ecosystem {
	lower := strings.ToLower(cmd)
	switch {
	case strings.Contains(lower, "npm"), strings.Contains(lower, "yarn"), strings.Contains(lower, "pnpm"):
		return EcosystemNode
	case strings.Contains(lower, "pip"):
		return EcosystemPip
	case strings.Contains(lower, "cargo"):
		return EcosystemCargo
	case strings.Contains(lower, "gradle"), strings.Contains(lower, "mvn"):
		return EcosystemGradleMaven
	default:
		return EcosystemUnknown
	}
}
