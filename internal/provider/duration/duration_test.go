package duration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateCommand_MatchesKnownPatterns(t *testing.T) {
	cases := []struct {
		cmd  string
		want float64
	}{
		{"npm ci", DependencyInstall},
		{"pip install -r requirements.txt", DependencyInstall},
		{"go test ./...", CompileOrTest},
		{"cargo build --release", CompileOrTest},
		{"eslint .", Lint},
		{"docker build -t app .", ContainerBuild},
		{"git checkout main", Checkout},
	}
	for _, c := range cases {
		require.Equal(t, c.want, EstimateCommand(c.cmd), c.cmd)
	}
}

func TestEstimateCommand_IsCaseInsensitive(t *testing.T) {
	require.Equal(t, DependencyInstall, EstimateCommand("NPM CI"))
}

func TestEstimateCommand_UnmatchedDefaultsToGenericShell(t *testing.T) {
	require.Equal(t, GenericShell, EstimateCommand("echo hello world"))
}

func TestEstimateCommand_FirstMatchWins(t *testing.T) {
	// "npm run build" should hit its own CompileOrTest rule, not a
	// looser earlier rule, since commandRules is ordered most-specific first.
	require.Equal(t, CompileOrTest, EstimateCommand("npm run build"))
}

func TestEstimateAction_MatchesKnownActions(t *testing.T) {
	cases := []struct {
		uses string
		want float64
	}{
		{"actions/checkout@v4", Checkout},
		{"actions/setup-node@v4", LanguageSetup},
		{"actions/setup-go@v5", LanguageSetup},
		{"actions/cache@v4", 5.0},
		{"actions/upload-artifact@v4", ArtifactUpload},
	}
	for _, c := range cases {
		require.Equal(t, c.want, EstimateAction(c.uses), c.uses)
	}
}

func TestEstimateAction_UnmatchedDefaultsToUnknownAction(t *testing.T) {
	require.Equal(t, UnknownAction, EstimateAction("some-org/some-custom-action@v1"))
}

func TestIsDependencyInstaller(t *testing.T) {
	require.True(t, IsDependencyInstaller("npm ci"))
	require.True(t, IsDependencyInstaller("bundle exec; mvn install"))
	require.False(t, IsDependencyInstaller("echo hi"))
}

func TestClassifyEcosystem(t *testing.T) {
	require.Equal(t, EcosystemNode, ClassifyEcosystem("yarn install"))
	require.Equal(t, EcosystemPip, ClassifyEcosystem("pip install -r requirements.txt"))
	require.Equal(t, EcosystemCargo, ClassifyEcosystem("cargo build"))
	require.Equal(t, EcosystemGradleMaven, ClassifyEcosystem("./gradlew build"))
	require.Equal(t, EcosystemUnknown, ClassifyEcosystem("make all"))
}
