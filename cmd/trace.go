package cmd

import (
	"context"
	"encoding/binary"
	"errors"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tcassar-diss/rawbpf/asm"
	"github.com/tcassar-diss/rawbpf/bpf"
	"github.com/tcassar-diss/rawbpf/ringbuf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	tracepointFlag string
	ringSizeFlag   uint32
	durationFlag   time.Duration
)

// traceCmd assembles a small raw tracepoint program by hand, loads
// it, and streams the process IDs it reports through a ring buffer.
var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace syscall entry, streaming events through a ring buffer",
	Long: `Trace assembles a raw tracepoint program on the fly (no compiler
involved), attaches it to the given tracepoint, and prints one event per
invocation until interrupted.

	USAGE
		rawbpf trace [flags]
	`,
	Run: func(cmd *cobra.Command, args []string) {
		l, err := zap.NewProduction()
		if err != nil {
			log.Fatalf("failed to get zap production logger: %v\n", err)
		}

		logger := l.Sugar()
		defer logger.Sync()

		if err := runTrace(logger); err != nil {
			logger.Fatalw("trace failed", "err", err)
		}
	},
}

func init() {
	traceCmd.Flags().StringVar(&tracepointFlag, "tracepoint", "sys_enter", "raw tracepoint to attach to")
	traceCmd.Flags().Uint32Var(&ringSizeFlag, "ring-size", 1<<20, "ring buffer size in bytes (power of two)")
	traceCmd.Flags().DurationVar(&durationFlag, "duration", 0, "stop after this long (0: run until ctrl-c)")

	rootCmd.AddCommand(traceCmd)
}

func runTrace(logger *zap.SugaredLogger) error {
	events, err := bpf.NewMap(bpf.MapSpec{
		Name:       "trace_events",
		Type:       bpf.MapTypeRingBuf,
		MaxEntries: ringSizeFlag,
	})
	if err != nil {
		return err
	}
	defer events.Close()

	counts, err := bpf.NewMap(bpf.MapSpec{
		Name:       "trace_counts",
		Type:       bpf.MapTypeArray,
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1,
	})
	if err != nil {
		return err
	}
	defer counts.Close()

	assembled, err := buildTraceProgram(events.FD(), counts.FD())
	if err != nil {
		return err
	}

	prog, err := bpf.LoadProgram(logger, assembled, bpf.ProgramOpts{Name: "trace_" + tracepointFlag})
	if err != nil {
		return err
	}
	defer prog.Close()

	link, err := bpf.AttachRawTracepoint(prog, tracepointFlag)
	if err != nil {
		return err
	}
	defer link.Close()

	reader, err := ringbuf.NewReader(logger, events)
	if err != nil {
		return err
	}
	defer reader.Close()

	logger.Infow("tracing", "tracepoint", tracepointFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if durationFlag > 0 {
		ctx, cancel = context.WithTimeout(ctx, durationFlag)
		defer cancel()
	}

	stopper := make(chan os.Signal, 1)
	signal.Notify(stopper, os.Interrupt)

	var eg errgroup.Group

	eg.Go(func() error {
		<-stopper
		logger.Infow("received ctrl-c, exiting")
		cancel()

		return nil
	})

	eg.Go(func() error {
		defer signal.Stop(stopper)
		defer close(stopper)

		return streamEvents(ctx, logger, reader)
	})

	if err := eg.Wait(); err != nil {
		return err
	}

	typedCounts, err := bpf.NewTypedMap(counts, bpf.U32(), bpf.U64())
	if err != nil {
		return err
	}

	total, err := typedCounts.Lookup(0)
	if err != nil {
		return err
	}

	logger.Infow("tracing finished", "events", total)

	return nil
}

// buildTraceProgram emits, in order: bump the invocation counter with
// an atomic add, then push the caller's pid/tgid word into the ring
// buffer.
func buildTraceProgram(eventsFD, countsFD int) (*asm.Assembled, error) {
	var a asm.Assembler

	a.Emit(
		// counts[0] += 1, skipping if the slot lookup fails
		asm.StoreImm(asm.W, asm.FP, -4, 0),
		asm.LoadMapFD(asm.R1, countsFD),
		asm.Mov64Reg(asm.R2, asm.FP),
		asm.ALU64Imm(asm.Add, asm.R2, -4),
		asm.Call("map_lookup_elem"),
		asm.JumpImm(asm.JEq, asm.R0, 0, "submit"),
		asm.Mov64Imm(asm.R1, 1),
		asm.AtomicAdd64(asm.R0, 0, asm.R1),
	)

	a.Label("submit")
	a.Emit(
		asm.Call("get_current_pid_tgid"),
		asm.StoreMem(asm.DW, asm.FP, -16, asm.R0),
		asm.LoadMapFD(asm.R1, eventsFD),
		asm.Mov64Reg(asm.R2, asm.FP),
		asm.ALU64Imm(asm.Add, asm.R2, -16),
		asm.Mov64Imm(asm.R3, 8),
		asm.Mov64Imm(asm.R4, 0),
		asm.Call("ringbuf_output"),
		asm.Mov64Imm(asm.R0, 0),
		asm.Exit(),
	)

	return a.Assemble(asm.ProgTypeRawTracepoint)
}

func streamEvents(ctx context.Context, logger *zap.SugaredLogger, reader *ringbuf.Reader) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		sample, err := reader.Poll(100 * time.Millisecond)
		if errors.Is(err, ringbuf.ErrDeadlineExceeded) {
			continue
		}

		if err != nil {
			return err
		}

		if len(sample) < 8 {
			logger.Warnw("short sample", "len", len(sample))
			continue
		}

		word := binary.LittleEndian.Uint64(sample)
		logger.Infow("event", "pid", uint32(word>>32), "tid", uint32(word))
	}
}
