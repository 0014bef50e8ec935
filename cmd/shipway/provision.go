package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/shipway/internal/core/crypto"
	coreprovider "github.com/artpar/shipway/internal/core/provider"
	"github.com/artpar/shipway/internal/shell/history"
	"github.com/artpar/shipway/internal/shell/provider"
)

func provisionCmd(args []string, cfg *Config, log *slog.Logger) int {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	providerType := fs.String("provider", "", "cloud provider: "+strings.Join(coreprovider.Known(), ", "))
	name := fs.String("name", "", "target name, seeds instance/key/group names")
	region := fs.String("region", "", "provider region for the new host")
	size := fs.String("size", "", "instance size ID (default: recommended from -cpu/-memory)")
	cpu := fs.Float64("cpu", 1, "minimum CPU cores when recommending a size")
	memory := fs.Float64("memory", 2, "minimum memory in GB when recommending a size")
	portainerPort := fs.Int("portainer-port", cfg.Target.HTTPSPort, "host port for the Portainer UI")
	listRegions := fs.Bool("list-regions", false, "print available regions and exit")
	listSizes := fs.Bool("list-sizes", false, "print available instance sizes and exit")
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}

	if *providerType == "" {
		log.Error("missing -provider", "known", strings.Join(coreprovider.Known(), ", "))
		return ExitUsageError
	}

	ctx := context.Background()
	prov, err := provider.New(*providerType, processEnvValues(), log)
	if err != nil {
		log.Error("provider setup failed", "provider", *providerType, "error", err)
		return ExitProviderError
	}

	if *listRegions {
		return printRegions(ctx, prov)
	}
	if *listSizes {
		return printSizes(ctx, prov, *region)
	}

	if *name == "" {
		log.Error("missing -name")
		return ExitUsageError
	}
	if *region == "" {
		log.Error("missing -region", "hint", "run with -list-regions to see choices")
		return ExitUsageError
	}

	sizeID := *size
	if sizeID == "" {
		rec, ok := coreprovider.RecommendSize(*providerType, *cpu, *memory)
		if !ok {
			log.Error("no catalog size satisfies the requested resources",
				"provider", *providerType, "cpu", *cpu, "memory_gb", *memory)
			return ExitUsageError
		}
		sizeID = rec.ID
		log.Info("selected instance size", "size", rec.ID, "price_hourly", rec.PriceHourly)
	}

	// The private key only ever exists encrypted at rest, so the store and
	// the passphrase both have to be in place before the instance is born.
	ws := discoverWorkspace(log)
	store, err := openHistory(cfg, ws.Root)
	if err != nil {
		log.Error("open history store", "error", err)
		return ExitHistoryError
	}
	if store == nil {
		log.Error("provisioning requires the history store", "hint", "set history.path or SHIPWAY_HISTORY_PATH")
		return ExitConfigError
	}
	defer store.Close()
	key := historyKey(cfg)
	if key == nil {
		log.Error("provisioning requires an encryption passphrase", "hint", "set SHIPWAY_HISTORY_KEY")
		return ExitConfigError
	}

	privatePEM, publicKey, err := crypto.GenerateSSHKeyPair()
	if err != nil {
		log.Error("generate SSH key pair", "error", err)
		return ExitRunError
	}
	keyCipher, err := crypto.Encrypt(privatePEM, key)
	if err != nil {
		log.Error("encrypt SSH key", "error", err)
		return ExitRunError
	}

	log.Info("creating instance", "provider", *providerType, "name", *name, "region", *region, "size", sizeID)
	res, err := prov.CreateInstance(ctx, provider.ProvisionRequest{
		Name:          *name,
		Region:        *region,
		Size:          sizeID,
		SSHPublicKey:  publicKey,
		PortainerPort: *portainerPort,
	})
	if err != nil {
		log.Error("create instance failed", "provider", *providerType, "error", err)
		return ExitProviderError
	}

	target := &history.Target{
		ID:           uuid.NewString(),
		Name:         *name,
		Provider:     *providerType,
		Region:       *region,
		Size:         sizeID,
		InstanceID:   res.ProviderInstanceID,
		PublicIP:     res.PublicIP,
		SSHUser:      sshUserFor(*providerType),
		SSHKeyCipher: keyCipher,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.SaveTarget(ctx, target); err != nil {
		// The instance exists but we lost its key. Surface everything the
		// operator needs to clean up by hand.
		log.Error("instance created but could not be recorded; destroy it manually",
			"provider", *providerType, "instance_id", res.ProviderInstanceID,
			"ip", res.PublicIP, "error", err)
		return ExitHistoryError
	}

	fmt.Printf("Target:    %s (%s)\n", target.Name, target.ID)
	fmt.Printf("Instance:  %s @ %s/%s\n", target.InstanceID, target.Provider, target.Region)
	fmt.Printf("Address:   %s@%s\n", target.SSHUser, target.PublicIP)
	fmt.Printf("Portainer: https://%s:%d (first boot takes a few minutes)\n", target.PublicIP, *portainerPort)
	return ExitSuccess
}

// sshUserFor maps a provider to the login user its images install keys for.
// AWS Ubuntu AMIs reject root logins.
func sshUserFor(providerType string) string {
	if providerType == coreprovider.AWS {
		return "ubuntu"
	}
	return "root"
}

func printRegions(ctx context.Context, prov provider.Provider) int {
	regions, err := prov.ListRegions(ctx)
	if err != nil {
		fmt.Println("could not list regions:", err)
		return ExitProviderError
	}
	for _, r := range regions {
		marker := " "
		if !r.Available {
			marker = "!"
		}
		fmt.Printf("%s %-18s %s\n", marker, r.ID, r.Name)
	}
	return ExitSuccess
}

func printSizes(ctx context.Context, prov provider.Provider, region string) int {
	sizes, err := prov.ListSizes(ctx, region)
	if err != nil {
		fmt.Println("could not list sizes:", err)
		return ExitProviderError
	}
	for _, s := range sizes {
		fmt.Printf("%-16s %4.1f cores %6d MB %4d GB  $%.4f/h\n",
			s.ID, s.CPUCores, s.MemoryMB, s.DiskGB, s.PriceHourly)
	}
	return ExitSuccess
}
