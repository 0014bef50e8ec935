package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/envschema"
)

// validateCmd checks the env files against the schemas without touching any
// target platform: the runtime file strictly on its own, the deploy file
// strictly with the process environment layered on top for CI.
func validateCmd(args []string, cfg *Config, log *slog.Logger) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	runtimePath := fs.String("runtime", defaultRuntimeEnvFile, "runtime env file")
	deployPath := fs.String("deploy", defaultDeployEnvFile, "deploy env file")
	noRuntime := fs.Bool("no-runtime-file", false, "skip the runtime env file")
	noDeploy := fs.Bool("no-deploy-file", false, "skip the deploy env file, validating process env only")
	verbose := fs.Bool("verbose", false, "print resolved keys with provenance")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	ws := discoverWorkspace(log)
	var failures []string

	if !*noRuntime {
		env, err := validateRuntime(ws.Root, *runtimePath)
		if err != nil {
			failures = append(failures, err.Error())
		} else if *verbose {
			printResolved(envschema.RuntimeSchema(), env)
		}
	}

	env, err := validateDeploy(ws.Root, *deployPath, *noDeploy)
	if err != nil {
		failures = append(failures, err.Error())
	} else {
		if *verbose {
			printResolved(envschema.DeploySchema(), env)
		}
		if env.Get(envschema.KeyAzureDNSLabel) == "" {
			base := env.Get(envschema.KeyAzureContainerName)
			fmt.Printf("AZURE_DNS_LABEL unset, deploys will derive %q\n", deploy.SanitizeDNSLabel(base))
		}
	}

	if len(failures) > 0 {
		for _, f := range failures {
			fmt.Fprintln(os.Stderr, f)
		}
		return ExitValidationError
	}

	fmt.Println("environment ok")
	return ExitSuccess
}

// validateRuntime resolves the runtime env file strictly. The file must
// exist: runtime settings have nowhere else to live.
func validateRuntime(root, path string) (envschema.ResolvedEnv, error) {
	vals, _, err := readEnvFile(root, path, true)
	if err != nil {
		return envschema.ResolvedEnv{}, err
	}
	return envschema.Resolve(envschema.RuntimeSchema(), []envschema.Source{{
		Provenance: envschema.ProvenanceRuntimeFile,
		Target:     envschema.TargetRuntimeFile,
		Strict:     true,
		Values:     vals,
	}})
}

// validateDeploy resolves the deploy env with the process environment
// overlaid, the way CI supplies deploy keys. A missing file is fine; its
// keys may arrive through the environment.
func validateDeploy(root, path string, skipFile bool) (envschema.ResolvedEnv, error) {
	var vals map[string]string
	if !skipFile {
		v, _, err := readEnvFile(root, path, false)
		if err != nil {
			return envschema.ResolvedEnv{}, err
		}
		vals = v
	}

	env, err := envschema.Resolve(envschema.DeploySchema(), []envschema.Source{
		{Provenance: envschema.ProvenanceProcessEnv, Values: processEnvValues()},
		{Provenance: envschema.ProvenanceDeployFile, Target: envschema.TargetDeployFile, Strict: true, Values: vals},
	})
	if err != nil {
		return envschema.ResolvedEnv{}, err
	}
	if err := envschema.ValidateCrossFieldRules(env, "deploy ("+path+" + env)"); err != nil {
		return env, err
	}
	return env, nil
}

// printResolved lists resolved keys in schema order with their provenance,
// masking secret values.
func printResolved(schema *envschema.Schema, env envschema.ResolvedEnv) {
	for _, spec := range schema.Specs() {
		v, ok := env.Lookup(spec.Name)
		if !ok {
			continue
		}
		shown := v.Value
		if spec.Sensitivity == envschema.SensitivitySecret {
			shown = "***"
		}
		fmt.Printf("%s=%s (%s)\n", spec.Name, shown, v.Provenance)
	}
}
