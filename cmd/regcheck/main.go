// cmd/regcheck inspects a contract registry deployed on a remote chain.
//
// Resolves the canonical topics (or --topics), and optionally reports the
// registration and roles of --addr.
//
// Usage:
//   go run ./cmd/regcheck/ --rpc <url> --registry <addr> [--topics a,b] [--addr <addr>]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/0gfoundation/0g-mint-engine/internal/chain"
	"github.com/0gfoundation/0g-mint-engine/internal/config"
	"github.com/0gfoundation/0g-mint-engine/internal/registry"
)

var defaultTopics = []string{
	registry.TopicScheduleManager,
	registry.TopicTicketManager,
	registry.TopicTreasury,
	registry.TopicMintOperator,
}

func main() {
	rpcURL := flag.String("rpc", "https://evmrpc-testnet.0g.ai", "EVM RPC endpoint")
	regAddr := flag.String("registry", os.Getenv("REGISTRY_ADDRESS"), "contract registry address")
	topics := flag.String("topics", strings.Join(defaultTopics, ","), "comma-separated topics to resolve")
	addr := flag.String("addr", "", "address to check registration and roles for")
	flag.Parse()

	if *regAddr == "" {
		fmt.Fprintln(os.Stderr, "error: --registry is required")
		os.Exit(1)
	}
	if *addr != "" && !common.IsHexAddress(*addr) {
		fmt.Fprintf(os.Stderr, "error: invalid --addr %q\n", *addr)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cfg := &config.Config{}
	cfg.Chain.RPCURL = *rpcURL
	cfg.Chain.RegistryAddress = *regAddr
	client, err := chain.Dial(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if head, err := client.BlockNumber(ctx); err == nil {
		fmt.Printf("head:      %d\n", head)
	}
	fmt.Printf("registry:  %s\n", client.Address().Hex())

	failed := false
	for _, topic := range strings.Split(*topics, ",") {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			continue
		}
		resolved, err := client.GetContract(ctx, topic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", topic, err)
			failed = true
			continue
		}
		if resolved == (common.Address{}) {
			fmt.Printf("%-20s (unregistered)\n", topic)
			continue
		}
		fmt.Printf("%-20s %s\n", topic, resolved.Hex())
	}

	if *addr != "" {
		target := common.HexToAddress(*addr)
		ok, err := client.CheckRegistration(ctx, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "checkRegistration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\n%s registered: %v\n", target.Hex(), ok)
		for _, role := range []registry.Role{registry.RoleExchange, registry.RoleRandomness, registry.RoleMinter} {
			has, err := client.HasRole(ctx, target, role)
			if err != nil {
				fmt.Fprintf(os.Stderr, "hasRole %s: %v\n", role, err)
				failed = true
				continue
			}
			fmt.Printf("  %-12s %v\n", role, has)
		}
	}

	if failed {
		os.Exit(1)
	}
}
