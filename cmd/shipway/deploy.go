package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/artpar/shipway/internal/core/basicauth"
	"github.com/artpar/shipway/internal/core/crypto"
	"github.com/artpar/shipway/internal/core/deploy"
	"github.com/artpar/shipway/internal/core/envschema"
	"github.com/artpar/shipway/internal/core/hooks"
	"github.com/artpar/shipway/internal/core/manifest"
	"github.com/artpar/shipway/internal/engine"
	"github.com/artpar/shipway/internal/shell/azure"
	"github.com/artpar/shipway/internal/shell/history"
	"github.com/artpar/shipway/internal/shell/hookload"
	"github.com/artpar/shipway/internal/shell/image"
	"github.com/artpar/shipway/internal/shell/portainer"
	"github.com/artpar/shipway/internal/shell/sshsync"
)

// Apply targets.
const (
	targetACI     = "aci"
	targetWebhook = "webhook"
)

// =============================================================================
// Flags
// =============================================================================

type deployOptions struct {
	mode          string
	manifest      string
	envFile       string
	deployEnvFile string
	sets          stringList

	app         string
	sidecar     string
	omitSidecar bool

	image        string
	sidecarImage string
	cpu          float64
	memory       float64
	port         int
	portBudget   int

	hooksModule   string
	softFailHooks string

	name         string
	target       string
	validateOnly bool
	renderOnly   bool
	artifactDir  string

	basicAuthUser     string
	basicAuthHash     string
	basicAuthPassword string
	bcryptCost        int

	build         bool
	push          bool
	buildPush     bool
	publish       bool
	dockerContext string
	dockerfile    string

	writeBack bool

	uploadEnv         bool
	uploadEnvFile     string
	uploadEnvSecret   string
	uploadEnvPrefixes string
	uploadEnvRaw      bool

	host          string
	sshKeyFile    string
	remoteDir     string
	webhookURL    string
	webhookToken  string
	portainerPort int

	args []string

	envFileSet       bool
	deployEnvFileSet bool
}

func parseDeployFlags(args []string, cfg *Config) (*deployOptions, error) {
	var opts deployOptions
	fs := flag.NewFlagSet("deploy", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	fs.StringVar(&opts.mode, "mode", "", "deployment mode: app-only, app+sidecar or full (default app+sidecar)")
	fs.StringVar(&opts.manifest, "manifest", defaultManifestPath, "deployment manifest path")
	fs.StringVar(&opts.envFile, "env-file", defaultRuntimeEnvFile, "runtime env file")
	fs.StringVar(&opts.deployEnvFile, "deploy-env-file", defaultDeployEnvFile, "deploy env file")
	fs.Var(&opts.sets, "set", "override KEY=VALUE (repeatable)")

	fs.StringVar(&opts.app, "app", "", "manifest service to treat as the app, overriding role tags")
	fs.StringVar(&opts.sidecar, "sidecar", "", "manifest service to treat as the sidecar, overriding role tags")
	fs.BoolVar(&opts.omitSidecar, "omit-sidecar", false, "deploy without a sidecar even in sidecar modes")

	fs.StringVar(&opts.image, "image", "", "app container image, overriding env and manifest")
	fs.StringVar(&opts.sidecarImage, "sidecar-image", "", "sidecar container image")
	fs.Float64Var(&opts.cpu, "cpu", 0, "app CPU cores")
	fs.Float64Var(&opts.memory, "memory", 0, "app memory in GB")
	fs.IntVar(&opts.port, "port", 0, "app port")
	fs.IntVar(&opts.portBudget, "port-budget", 0, "public ports per deployment unit")

	fs.StringVar(&opts.hooksModule, "hooks-module", "", "hook unit reference (name or plugin path)")
	fs.StringVar(&opts.softFailHooks, "soft-fail-hooks", "", "override hook failure policy (true|false)")

	fs.StringVar(&opts.name, "name", "", "deployment name recorded in history (default: plan base name)")
	fs.StringVar(&opts.target, "target", cfg.Target.Kind, "apply target: aci or webhook")
	fs.BoolVar(&opts.validateOnly, "validate-only", false, "stop after environment validation")
	fs.BoolVar(&opts.renderOnly, "render-only", false, "stop after rendering artifacts")
	fs.StringVar(&opts.artifactDir, "artifact-dir", "", "artifact output directory (default: "+engine.DefaultArtifactDir+")")

	fs.StringVar(&opts.basicAuthUser, "basic-auth-user", "", "basic auth username")
	fs.StringVar(&opts.basicAuthHash, "basic-auth-hash", "", "basic auth bcrypt hash, or a plaintext password to hash")
	fs.StringVar(&opts.basicAuthPassword, "basic-auth-password", "", "basic auth password, hashed before use")
	fs.IntVar(&opts.bcryptCost, "bcrypt-cost", basicauth.DefaultCost, "bcrypt cost for password hashing")

	fs.BoolVar(&opts.build, "build", false, "build the app image before deploying")
	fs.BoolVar(&opts.push, "push", false, "push the app image before deploying")
	fs.BoolVar(&opts.buildPush, "build-push", false, "build and push the app image before deploying")
	fs.BoolVar(&opts.publish, "publish", true, "build and push when no explicit -build/-push is given")
	fs.StringVar(&opts.dockerContext, "docker-context", "", "docker build context (default: repo root, or its docker/ dir)")
	fs.StringVar(&opts.dockerfile, "dockerfile", "", "Dockerfile path within the build context")

	fs.BoolVar(&opts.writeBack, "write-back-deploy-env", true, "write derived Azure IDs back into the deploy env file")

	fs.BoolVar(&opts.uploadEnv, "upload-env", true, "upload runtime env to the Key Vault before applying")
	fs.StringVar(&opts.uploadEnvFile, "upload-env-file", "", "runtime env file to upload (default: -env-file)")
	fs.StringVar(&opts.uploadEnvSecret, "upload-env-secret-name", "env", "Key Vault secret name for the runtime env")
	fs.StringVar(&opts.uploadEnvPrefixes, "upload-env-prefixes", "BASIC_AUTH_", "comma-separated key prefixes to include in the upload")
	fs.BoolVar(&opts.uploadEnvRaw, "upload-env-raw", false, "upload the full env file content, ignoring prefixes")

	fs.StringVar(&opts.host, "host", cfg.Target.Host, "webhook target as user@host (default: provisioned target)")
	fs.StringVar(&opts.sshKeyFile, "ssh-key-file", cfg.Target.SSHKeyFile, "PEM private key for -host")
	fs.StringVar(&opts.remoteDir, "remote-dir", cfg.Target.RemoteDir, "remote directory for stack and env files")
	fs.StringVar(&opts.webhookURL, "webhook-url", cfg.Target.WebhookURL, "full Portainer stack webhook URL")
	fs.StringVar(&opts.webhookToken, "webhook-token", cfg.Target.WebhookToken, "Portainer stack webhook token")
	fs.IntVar(&opts.portainerPort, "portainer-port", cfg.Target.HTTPSPort, "host port the Portainer UI is published on")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.args = fs.Args()
	opts.envFileSet = flagWasSet(fs, "env-file")
	opts.deployEnvFileSet = flagWasSet(fs, "deploy-env-file")
	return &opts, nil
}

// =============================================================================
// Command
// =============================================================================

func deployCmd(args []string, cfg *Config, log *slog.Logger) int {
	opts, err := parseDeployFlags(args, cfg)
	if err != nil {
		return ExitUsageError
	}

	mode, err := deploy.ParseMode(opts.mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitUsageError
	}
	softFail, err := parseSoftFail(opts.softFailHooks)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitUsageError
	}

	ws := discoverWorkspace(log)

	runtimeVals, runtimeRaw, err := readEnvFile(ws.Root, opts.envFile, opts.envFileSet)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	deployVals, deployRaw, err := readEnvFile(ws.Root, opts.deployEnvFile, opts.deployEnvFileSet)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}
	overrides, err := parseOverrides(opts.sets)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitUsageError
	}

	sources := envschema.StandardSources(overrides, processEnvValues(), deployVals, runtimeVals)
	merged := envschema.MergeSources(envschema.CombinedSchema(), sources)

	if err := applyBasicAuthOverrides(opts, merged, overrides); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitConfigError
	}

	manifestPath := resolvePath(ws.Root, opts.manifest)
	manifestYAML, err := os.ReadFile(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading manifest: %v\n", err)
		return ExitConfigError
	}

	ctx := context.Background()

	var store *history.Store
	if s, err := openHistory(cfg, ws.Root); err != nil {
		log.Warn("history store unavailable, runs will not be recorded", "error", err)
	} else if s != nil {
		store = s
		defer store.Close()
	}

	var stopAfter engine.Stage
	switch {
	case opts.validateOnly:
		stopAfter = engine.StageEnvResolved
	case opts.renderOnly:
		stopAfter = engine.StageArtifactRendered
	}
	applying := stopAfter == ""

	sidecarRef := opts.sidecarImage
	if applying {
		ref, err := publishImages(ctx, opts, merged, ws, log)
		if err != nil {
			log.Error("image publish failed", "error", err)
			return ExitRunError
		}
		sidecarRef = ref
	}

	var applier engine.Applier
	var preparer engine.Preparer
	var azCLI *azure.CLI
	targetDesc := opts.target

	if applying {
		switch opts.target {
		case targetACI:
			azCLI = azure.New(log)
			preparers := chainPreparer{azure.NewPreparer(azCLI, log)}
			if opts.uploadEnv {
				content, err := uploadContent(ws, opts, runtimeRaw)
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					return ExitConfigError
				}
				preparers = append(preparers, &envUploadPreparer{
					vault:      azure.NewVault(azCLI, azure.VaultConfig{}, log),
					secretName: opts.uploadEnvSecret,
					content:    content,
					log:        log,
				})
			}
			preparer = preparers
			applier = azure.NewApplier(azCLI, azure.ApplierConfig{}, log)
		case targetWebhook:
			a, host, err := webhookApplier(ctx, opts, cfg, ws, store, string(manifestYAML), runtimeRaw, log)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return ExitConfigError
			}
			applier = a
			targetDesc = targetWebhook + ":" + host
		default:
			fmt.Fprintf(os.Stderr, "unknown target %q, expected aci or webhook\n", opts.target)
			return ExitUsageError
		}
	}
	if opts.target == targetACI {
		targetDesc = aciTargetLabel(merged)
	}

	var recorder engine.Recorder
	if store != nil {
		recorder = history.NewRecorder(store, history.RunMeta{
			Name:     opts.name,
			Target:   targetDesc,
			Revision: ws.Revision,
		}, historyKey(cfg), log)
	}

	eng := engine.New(engine.Config{
		Loader:      hookload.New(ws.Root, hooks.NewRegistry(), log),
		Applier:     applier,
		Preparer:    preparer,
		Recorder:    recorder,
		ArtifactDir: opts.artifactDir,
		Log:         log,
	})

	dctx := &deploy.Context{
		RepoRoot: ws.Root,
		Invocation: deploy.Invocation{
			Mode:           mode,
			AppService:     opts.app,
			SidecarService: opts.sidecar,
			OmitSidecar:    opts.omitSidecar,
			Image:          opts.image,
			SidecarImage:   sidecarRef,
			CPUCores:       opts.cpu,
			MemoryGB:       opts.memory,
			Port:           opts.port,
			PortBudget:     opts.portBudget,
			HooksModule:    opts.hooksModule,
			SoftFailHooks:  softFail,
			Args:           opts.args,
		},
		Log: log,
	}

	res, err := eng.Run(ctx, engine.RunInput{
		Ctx:          dctx,
		ManifestYAML: string(manifestYAML),
		Sources:      sources,
		StopAfter:    stopAfter,
	})
	if err != nil {
		var vErr *envschema.ValidationError
		if errors.As(err, &vErr) {
			fmt.Fprintln(os.Stderr, vErr.Error())
			return ExitValidationError
		}
		log.Error("deploy failed", "stage", res.Stage, "error", err)
		return ExitRunError
	}

	reportRun(res, opts)

	if applying && opts.target == targetACI && opts.writeBack {
		writeBackDerivedIDs(ctx, azCLI, res.Plan, resolvePath(ws.Root, opts.deployEnvFile), deployRaw, log)
	}

	return ExitSuccess
}

// =============================================================================
// Basic Auth Normalization
// =============================================================================

// applyBasicAuthOverrides settles BASIC_AUTH_HASH before validation: an
// existing bcrypt hash passes through with its compose escaping undone, a
// plaintext value in the hash slot is hashed, and -basic-auth-password is the
// fallback when no hash exists anywhere.
func applyBasicAuthOverrides(opts *deployOptions, merged, overrides map[string]string) error {
	if opts.basicAuthUser != "" {
		overrides[envschema.KeyBasicAuthUser] = opts.basicAuthUser
	}

	candidate := opts.basicAuthHash
	if candidate == "" {
		candidate = merged[envschema.KeyBasicAuthHash]
	}
	if candidate != "" {
		normalized := basicauth.Normalize(candidate)
		if basicauth.LooksLikeHash(normalized) {
			overrides[envschema.KeyBasicAuthHash] = normalized
			return nil
		}
		hash, err := basicauth.HashPassword(candidate, opts.bcryptCost)
		if err != nil {
			return fmt.Errorf("hashing basic auth password: %w", err)
		}
		overrides[envschema.KeyBasicAuthHash] = hash
		return nil
	}

	if opts.basicAuthPassword != "" {
		hash, err := basicauth.HashPassword(opts.basicAuthPassword, opts.bcryptCost)
		if err != nil {
			return fmt.Errorf("hashing basic auth password: %w", err)
		}
		overrides[envschema.KeyBasicAuthHash] = hash
	}
	return nil
}

// parseSoftFail parses the tri-state -soft-fail-hooks flag. Empty means
// "resolve from the environment".
func parseSoftFail(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("invalid -soft-fail-hooks %q, expected true or false", s)
	}
	return &b, nil
}

// =============================================================================
// Image Publish
// =============================================================================

// publishImages builds and pushes the app image per the build flags, then
// prefetches the sidecar image and mirrors it next to a private app image.
// Returns the sidecar reference the plan should use.
func publishImages(ctx context.Context, opts *deployOptions, merged map[string]string, ws workspace, log *slog.Logger) (string, error) {
	buildReq := opts.build || opts.buildPush
	pushReq := opts.push || opts.buildPush
	if !buildReq && !pushReq && opts.publish {
		buildReq, pushReq = true, true
	}

	sidecarRef := opts.sidecarImage
	if sidecarRef == "" {
		sidecarRef = deploy.DefaultSidecarImage
	}

	imageRef := opts.image
	if imageRef == "" {
		imageRef = merged[envschema.KeyContainerImage]
	}

	private := envschema.Truthy(merged[envschema.KeyGHCRPrivate])
	auth := registryAuth(merged, imageRef)

	if !buildReq && !pushReq && !private {
		return sidecarRef, nil
	}
	if imageRef == "" {
		return "", errors.New("no image to publish, pass -image or set CONTAINER_IMAGE")
	}
	if pushReq && (auth == nil || auth.Username == "" || auth.Password == "") {
		return "", errors.New("pushing requires registry credentials, set GHCR_USERNAME and GHCR_TOKEN")
	}

	pub, err := image.NewPublisher(log)
	if err != nil {
		return "", err
	}
	defer pub.Close()

	if buildReq {
		spec := image.BuildSpec{
			Ref:        imageRef,
			ContextDir: image.ResolveContext(ws.Root, opts.dockerContext),
			Dockerfile: opts.dockerfile,
		}
		if err := pub.Build(ctx, spec); err != nil {
			return "", err
		}
	}
	if pushReq {
		if err := pub.Login(ctx, auth); err != nil {
			return "", err
		}
		if err := pub.Push(ctx, imageRef, auth); err != nil {
			return "", err
		}
	}

	return pub.MirrorSidecar(ctx, sidecarRef, imageRef, auth), nil
}

// registryAuth assembles GHCR credentials from the merged environment, with
// the username defaulting to the image owner for ghcr.io references.
func registryAuth(merged map[string]string, imageRef string) *deploy.RegistryAuth {
	username := merged[envschema.KeyGHCRUsername]
	if username == "" {
		username = image.OwnerFromRef(imageRef)
	}
	token := merged[envschema.KeyGHCRToken]
	if username == "" && token == "" {
		return nil
	}
	return &deploy.RegistryAuth{Server: "ghcr.io", Username: username, Password: token}
}

// =============================================================================
// Preparers
// =============================================================================

// chainPreparer runs preparers in order, stopping at the first failure.
type chainPreparer []engine.Preparer

func (c chainPreparer) Prepare(ctx context.Context, plan *deploy.Plan) error {
	for _, p := range c {
		if err := p.Prepare(ctx, plan); err != nil {
			return err
		}
	}
	return nil
}

// envUploadPreparer uploads the runtime env to the plan's key vault. It runs
// after the infra preparer, so the vault exists; it runs before apply, so the
// container's first boot can fetch the secret.
type envUploadPreparer struct {
	vault      *azure.Vault
	secretName string
	content    []byte
	log        *slog.Logger
}

func (p *envUploadPreparer) Prepare(ctx context.Context, plan *deploy.Plan) error {
	vaultName := deploy.KeyVaultName(plan.ResourceGroup)
	if err := p.vault.SetSecret(ctx, vaultName, p.secretName, string(p.content)); err != nil {
		return fmt.Errorf("uploading runtime env to vault %s: %w", vaultName, err)
	}
	p.log.Info("runtime env uploaded", "vault", vaultName, "secret", p.secretName)
	return nil
}

// uploadContent picks and filters the env content the vault secret carries.
func uploadContent(ws workspace, opts *deployOptions, runtimeRaw []byte) ([]byte, error) {
	content := runtimeRaw
	path := opts.envFile
	if opts.uploadEnvFile != "" {
		path = opts.uploadEnvFile
		var err error
		content, err = os.ReadFile(resolvePath(ws.Root, path))
		if err != nil {
			return nil, fmt.Errorf("reading upload env file: %w", err)
		}
	}
	if base := filepath.Base(path); base == ".env.deploy" || base == "env.deploy" {
		return nil, fmt.Errorf("refusing to upload deploy-only env file %s; put runtime settings in .env or pass -upload-env-file", path)
	}
	if content == nil {
		return nil, fmt.Errorf("runtime env file %s not found; create it or pass -upload-env=false", opts.envFile)
	}
	return filterEnvContent(content, splitPrefixes(opts.uploadEnvPrefixes), opts.uploadEnvRaw), nil
}

// =============================================================================
// Webhook Target Wiring
// =============================================================================

// webhookApplier wires the Portainer apply collaborator. The host and key
// come from flags or config when set, otherwise from the provisioned target
// recorded in history.
func webhookApplier(ctx context.Context, opts *deployOptions, cfg *Config, ws workspace, store *history.Store, manifestYAML string, runtimeRaw []byte, log *slog.Logger) (engine.Applier, string, error) {
	host := opts.host
	var key []byte

	switch {
	case host != "" && opts.sshKeyFile != "":
		pem, err := os.ReadFile(resolvePath(ws.Root, opts.sshKeyFile))
		if err != nil {
			return nil, "", fmt.Errorf("reading ssh key: %w", err)
		}
		key = pem
	case host != "":
		return nil, "", errors.New("webhook target needs an ssh key, pass -ssh-key-file or set target.ssh_key_file")
	default:
		tgt, err := provisionedTarget(ctx, store, opts.name)
		if err != nil {
			return nil, "", err
		}
		keyBytes := historyKey(cfg)
		if keyBytes == nil {
			return nil, "", errors.New("SHIPWAY_HISTORY_KEY is required to read the provisioned target's ssh key")
		}
		pem, err := crypto.Decrypt(tgt.SSHKeyCipher, keyBytes)
		if err != nil {
			return nil, "", fmt.Errorf("decrypting target ssh key: %w", err)
		}
		host = tgt.SSHUser + "@" + tgt.PublicIP
		key = pem
	}

	if opts.webhookURL == "" && opts.webhookToken == "" {
		return nil, "", errors.New("webhook target needs -webhook-url or -webhook-token")
	}

	client, err := sshsync.NewClient(sshsync.Config{Host: host, PrivateKey: key})
	if err != nil {
		return nil, "", err
	}

	m, err := manifest.Parse(manifestYAML)
	if err != nil {
		return nil, "", err
	}

	trigger := portainer.NewTrigger(portainer.WebhookConfig{
		URL:       opts.webhookURL,
		Token:     opts.webhookToken,
		Host:      host,
		HTTPSPort: opts.portainerPort,
		Insecure:  cfg.Target.Insecure,
	}, log)

	envFiles := map[string][]byte{}
	if runtimeRaw != nil {
		envFiles[".env"] = runtimeRaw
	}

	applier := portainer.NewApplier(m, client, trigger, portainer.ApplierConfig{
		Host:      host,
		RemoteDir: opts.remoteDir,
		HTTPSPort: opts.portainerPort,
		LocalRoot: ws.Root,
		EnvFiles:  envFiles,
	}, log)
	return applier, host, nil
}

// provisionedTarget finds the provisioned host this deploy should go to: the
// named target when -name is set, otherwise the single active one.
func provisionedTarget(ctx context.Context, store *history.Store, name string) (*history.Target, error) {
	if store == nil {
		return nil, errors.New("no webhook host: pass -host, or enable the history store to use a provisioned target")
	}
	if name != "" {
		return store.ActiveTarget(ctx, name)
	}

	targets, err := store.ListTargets(ctx, history.ListOptions{})
	if err != nil {
		return nil, err
	}
	var active []history.Target
	for _, t := range targets {
		if t.DestroyedAt == nil {
			active = append(active, t)
		}
	}
	switch len(active) {
	case 0:
		return nil, errors.New("no provisioned targets; run shipway provision or pass -host")
	case 1:
		return &active[0], nil
	default:
		return nil, fmt.Errorf("%d provisioned targets active, pass -name to pick one", len(active))
	}
}

// =============================================================================
// Post-run Steps
// =============================================================================

// aciTargetLabel describes the ACI target for history records, filling
// schema defaults for unset keys.
func aciTargetLabel(merged map[string]string) string {
	rg := merged[envschema.KeyAzureResourceGroup]
	if rg == "" {
		if spec, ok := envschema.DeploySchema().Lookup(envschema.KeyAzureResourceGroup); ok {
			rg = spec.Default
		}
	}
	location := merged[envschema.KeyAzureLocation]
	if location == "" {
		if spec, ok := envschema.DeploySchema().Lookup(envschema.KeyAzureLocation); ok {
			location = spec.Default
		}
	}
	return targetACI + ":" + rg + "@" + location
}

// reportRun prints what the run produced on stdout.
func reportRun(res *engine.RunResult, opts *deployOptions) {
	switch {
	case opts.validateOnly:
		fmt.Println("environment ok")
	case opts.renderOnly:
		for _, p := range res.Paths {
			fmt.Println(p)
		}
	default:
		for _, r := range res.Results {
			parts := []string{r.Unit}
			if r.State != "" {
				parts = append(parts, r.State)
			}
			if r.FQDN != "" {
				parts = append(parts, r.FQDN)
			}
			if r.IP != "" {
				parts = append(parts, r.IP)
			}
			fmt.Println(strings.Join(parts, "  "))
		}
	}
}

// writeBackDerivedIDs records the subscription, tenant and identity client
// IDs the run derived into the deploy env file, so later invocations and CI
// need not rediscover them. Failures warn; the deployment already happened.
func writeBackDerivedIDs(ctx context.Context, cli *azure.CLI, plan *deploy.Plan, path string, content []byte, log *slog.Logger) {
	updates := map[string]string{}
	if info, err := cli.AccountInfo(ctx); err == nil {
		updates[envschema.KeyAzureSubscriptionID] = info.SubscriptionID
		updates[envschema.KeyAzureTenantID] = info.TenantID
	} else {
		log.Warn("could not read azure account for env write-back", "error", err)
	}
	if plan != nil && plan.Infra.IdentityClientID != "" {
		updates[envschema.KeyAzureClientID] = plan.Infra.IdentityClientID
	}

	any := false
	for _, v := range updates {
		if v != "" {
			any = true
			break
		}
	}
	if !any {
		return
	}

	out := envschema.ApplyDotenvUpdates(content, updates, "Deployment identifiers managed by shipway")
	if err := os.WriteFile(path, out, 0o600); err != nil {
		log.Warn("deploy env write-back failed", "path", path, "error", err)
		return
	}
	log.Info("deploy env updated with derived ids", "path", path)
}
