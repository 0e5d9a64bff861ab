package jenkins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dagucloud/pipelinex/internal/pipedag"
)

const basicJenkinsfile = `
pipeline {
    agent any
    environment {
        PIPELINE_NAME = 'my-app'
    }
    stages {
        stage('Build') {
            agent { docker 'golang:1.23' }
            steps {
                sh 'go build ./...'
            }
        }
        stage('Test') {
            when {
                branch 'main'
            }
            steps {
                sh 'go test ./...'
            }
        }
    }
}
`

func TestParse_SequentialStagesChainByDefault(t *testing.T) {
	dag, err := Parse([]byte(basicJenkinsfile), "Jenkinsfile")
	require.NoError(t, err)
	require.Equal(t, ProviderName, dag.Provider)
	require.Equal(t, 2, dag.JobCount())

	test, ok := dag.GetJob("Test")
	require.True(t, ok)
	require.Equal(t, []string{"Build"}, test.Needs)
}

func TestParse_PipelineNameExtractedFromPIPELINE_NAME(t *testing.T) {
	dag, err := Parse([]byte(basicJenkinsfile), "Jenkinsfile")
	require.NoError(t, err)
	require.Equal(t, "my-app", dag.Name)
}

func TestParse_DockerAgentDetected(t *testing.T) {
	dag, err := Parse([]byte(basicJenkinsfile), "Jenkinsfile")
	require.NoError(t, err)
	build, ok := dag.GetJob("Build")
	require.True(t, ok)
	require.Equal(t, "docker:golang:1.23", build.RunsOn)
}

func TestParse_WhenConditionCaptured(t *testing.T) {
	dag, err := Parse([]byte(basicJenkinsfile), "Jenkinsfile")
	require.NoError(t, err)
	test, ok := dag.GetJob("Test")
	require.True(t, ok)
	require.Contains(t, test.Condition, "branch 'main'")
}

func TestParse_ShCommandExtracted(t *testing.T) {
	dag, err := Parse([]byte(basicJenkinsfile), "Jenkinsfile")
	require.NoError(t, err)
	build, ok := dag.GetJob("Build")
	require.True(t, ok)
	require.Len(t, build.Steps, 1)
	require.Equal(t, "go build ./...", build.Steps[0].Run)
}

func TestParse_ParallelStagesHaveNoEdgeBetweenSiblings(t *testing.T) {
	const pipeline = `
pipeline {
    agent any
    stages {
        stage('Setup') {
            steps {
                sh 'make setup'
            }
        }
        stage('Tests') {
            parallel {
                stage('Unit') {
                    steps {
                        sh 'make unit'
                    }
                }
                stage('Integration') {
                    steps {
                        sh 'make integration'
                    }
                }
            }
        }
    }
}
`
	dag, err := Parse([]byte(pipeline), "Jenkinsfile")
	require.NoError(t, err)
	integration, ok := dag.GetJob("Integration")
	require.True(t, ok)
	require.NotContains(t, integration.Needs, "Unit")
}

func TestParse_ParallelStagesScriptedClosureFormAlsoDetected(t *testing.T) {
	const pipeline = `
pipeline {
    agent any
    stages {
        stage('Tests') {
            parallel {
                Unit: {
                    sh 'make unit'
                }
                Integration: {
                    sh 'make integration'
                }
            }
        }
    }
}
`
	dag, err := Parse([]byte(pipeline), "Jenkinsfile")
	require.NoError(t, err)
	// Neither "Unit" nor "Integration" is a declared `stage(...)` job in
	// this scripted closure-map form, so they never become DAG jobs; the
	// parallel-sibling correction has nothing to act on.
	require.Equal(t, 1, dag.JobCount())
}

func TestParse_EnvironmentVariablesExtracted(t *testing.T) {
	const pipeline = `
pipeline {
    agent any
    stages {
        stage('Build') {
            environment {
                NODE_ENV = 'production'
            }
            steps {
                sh 'npm run build'
            }
        }
    }
}
`
	dag, err := Parse([]byte(pipeline), "Jenkinsfile")
	require.NoError(t, err)
	build, ok := dag.GetJob("Build")
	require.True(t, ok)
	require.Equal(t, "production", build.Env["NODE_ENV"])
}

func TestParse_NoStagesIsParseError(t *testing.T) {
	_, err := Parse([]byte("pipeline { agent any }"), "Jenkinsfile")
	require.Error(t, err)
	var perr *pipedag.ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, pipedag.MissingRequired, perr.Kind)
}

func TestParse_NpmCacheDetected(t *testing.T) {
	const pipeline = `
pipeline {
    agent any
    stages {
        stage('Build') {
            steps {
                sh 'npm ci'
            }
        }
    }
}
`
	dag, err := Parse([]byte(pipeline), "Jenkinsfile")
	require.NoError(t, err)
	build, ok := dag.GetJob("Build")
	require.True(t, ok)
	require.Len(t, build.Caches, 1)
	require.Equal(t, "node_modules", build.Caches[0].Path)
}
