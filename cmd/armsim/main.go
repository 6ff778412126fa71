package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coastermelt/armsim/internal/config"
	"github.com/coastermelt/armsim/internal/cpu"
	"github.com/coastermelt/armsim/internal/log"
	"github.com/coastermelt/armsim/internal/memory"
	"github.com/coastermelt/armsim/internal/transport"
	"github.com/coastermelt/armsim/internal/ui/colorize"
)

var (
	verbose    bool
	quiet      bool
	maxInsn    int
	configPath string
	memSize    int
	loadAddr   string
	armMode    bool
	breakAddr  string
	saveBase   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "armsim",
		Short: "Step an ARM/Thumb instruction stream through the reference simulator",
		Long: `armsim drives the register-level ARM/Thumb simulator against an
in-memory reference transport instead of a real debug probe, for
trying out instruction sequences and inspecting saved machine state.`,
		DisableFlagsInUseLine: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (final register line only)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "target config YAML (defaults built in if omitted)")

	runCmd := &cobra.Command{
		Use:   "run <script>",
		Short: "Step a textual instruction-stream script to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runScript,
	}
	runCmd.Flags().IntVarP(&maxInsn, "num", "n", 500, "max instructions to execute")
	runCmd.Flags().IntVar(&memSize, "mem-size", 0x400000, "size of the mock device address space")
	runCmd.Flags().StringVar(&loadAddr, "addr", "0x1000", "address the script is loaded at")
	runCmd.Flags().BoolVar(&armMode, "arm", false, "start in ARM mode instead of Thumb")
	runCmd.Flags().StringVar(&breakAddr, "break", "", "stop once pc reaches this address")
	runCmd.Flags().StringVar(&saveBase, "save", "", "save a state snapshot to <base>.addr/.data/.core on exit")
	rootCmd.AddCommand(runCmd)

	stateCmd := &cobra.Command{Use: "state", Short: "Inspect saved simulator state"}
	inspectCmd := &cobra.Command{
		Use:   "inspect <base>",
		Short: "Print a summary of a .addr/.data/.core snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectState,
	}
	stateCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(stateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadTargetConfig() (config.Config, error) {
	if configPath == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configPath)
}

func parseHexOrDecimal(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	base := 10
	trimmed := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		trimmed = s[2:]
	}
	v, err := strconv.ParseUint(trimmed, base, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint32(v), nil
}

func runScript(cmd *cobra.Command, args []string) error {
	debug := verbose && !quiet
	log.Init(debug)

	cfg, err := loadTargetConfig()
	if err != nil {
		return err
	}

	script, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	base, err := parseHexOrDecimal(loadAddr)
	if err != nil {
		return err
	}

	space := memSize
	if int(base)+len(script) >= space {
		space = int(base) + len(script) + 0x1000
	}
	port := transport.NewMockPort(space)
	port.WriteBytes(base, script)

	opts := memory.DefaultOptions()
	opts.Skips = cfg.SkipMap()
	opts.FlashBoundary = cfg.FlashBoundary
	opts.FlashMinAvailable = cfg.FlashMinAvailable
	opts.AddressSanityCeiling = cfg.AddressSanityCeiling
	// The whole script has to land in one prefetch chunk: the mock
	// disassembler parses an entire block as a script in one shot, it
	// never streams.
	if chunk := len(script) + 16; chunk > cfg.FlashPrefetchChunk {
		opts.FlashPrefetchChunk = chunk
	} else {
		opts.FlashPrefetchChunk = cfg.FlashPrefetchChunk
	}

	proxy := memory.NewProxy(port, transport.NewMockDisassembler(), opts)
	proxy.SetLogger(log.New(debug))

	sim := cpu.NewSimulator(proxy)
	thumb := !armMode
	vector := base
	if thumb {
		vector |= 1
	}
	sim.Reset(vector)

	var breakpoint uint32
	if breakAddr != "" {
		breakpoint, err = parseHexOrDecimal(breakAddr)
		if err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var stepErr error
	steps := 0
	for steps < maxInsn {
		if err := ctx.Err(); err != nil {
			stepErr = err
			break
		}
		if err := sim.Step(); err != nil {
			stepErr = err
			break
		}
		steps++
		if !quiet {
			fmt.Println(colorize.Instruction(sim.SummaryLine()))
		}
		if breakpoint != 0 && sim.Regs.PC() == breakpoint {
			break
		}
	}

	if err := proxy.Flush(); err != nil && stepErr == nil {
		stepErr = err
	}

	if saveBase != "" {
		if err := proxy.SaveState(saveBase, &sim.Regs); err != nil {
			fmt.Fprintf(os.Stderr, "armsim: saving state: %v\n", err)
		}
	}

	fmt.Println(sim.RegisterTraceLine())
	fmt.Printf("steps=%d %s\n", steps, sim.SummaryLine())

	if stepErr != nil {
		return fmt.Errorf("stopped after %d steps: %w", steps, stepErr)
	}
	return nil
}

func inspectState(cmd *cobra.Command, args []string) error {
	base := args[0]

	addrInfo, err := os.Stat(base + ".addr")
	if err != nil {
		return fmt.Errorf("reading %s.addr: %w", base, err)
	}

	proxy := memory.NewProxy(transport.NewMockPort(1), transport.NewMockDisassembler(), memory.DefaultOptions())
	var regs cpu.Registers
	if err := proxy.LoadState(base, &regs); err != nil {
		return fmt.Errorf("loading state: %w", err)
	}

	mode := "arm"
	if regs.Thumb {
		mode = "thumb"
	}
	fmt.Printf("snapshot: %s\n", filepath.Base(base))
	fmt.Printf("mode=%s pc=%#08x lr=%#08x sp=%#08x flags=%s steps=%d\n",
		mode, regs.PC(), regs.LR(), regs.SP(), regs.FlagsString(), regs.StepCount)
	for i := 0; i < 16; i++ {
		fmt.Printf("r%-2d=%#010x ", i, regs.Get(uint8(i)))
		if i%4 == 3 {
			fmt.Println()
		}
	}
	fmt.Printf("shadow address space: %d bytes tracked\n", addrInfo.Size())
	return nil
}
