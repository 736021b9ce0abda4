package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pior/jbod"
	"github.com/pior/jbod/wire"
	"github.com/spf13/cobra"
)

var (
	mountCmd = &cobra.Command{
		Use:   "mount",
		Short: "Mount the array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), wire.NewOpcode(wire.CmdMount, 0), nil, "")
		},
	}

	unmountCmd = &cobra.Command{
		Use:   "unmount",
		Short: "Unmount the array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), wire.NewOpcode(wire.CmdUnmount, 0), nil, "")
		},
	}

	execCmd = &cobra.Command{
		Use:   "exec <opcode>",
		Short: "Send a raw opcode (decimal or 0x hex)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseUint32(args[0])
			if err != nil {
				return err
			}
			op := wire.Opcode(v)

			var block *wire.Block
			if op.IsWrite() {
				if block, err = blockFromFlags(cmd); err != nil {
					return err
				}
			} else {
				block = new(wire.Block)
			}
			out, _ := cmd.Flags().GetString("out")
			return run(cmd.Context(), cmd.OutOrStdout(), op, block, out)
		},
	}

	seekDiskCmd = &cobra.Command{
		Use:   "seek-disk <disk>",
		Short: "Move the array position to a disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return seek(cmd.Context(), cmd.OutOrStdout(), wire.CmdSeekToDisk, args[0])
		},
	}

	seekBlockCmd = &cobra.Command{
		Use:   "seek-block <block>",
		Short: "Move the array position to a block of the current disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return seek(cmd.Context(), cmd.OutOrStdout(), wire.CmdSeekToBlock, args[0])
		},
	}

	readCmd = &cobra.Command{
		Use:   "read [operands]",
		Short: "Read the block at the current seek position",
		Long: `Read the block at the current seek position (see seek-disk and seek-block).
Operands, if given, are sent as-is in the opcode bits outside the command field.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operands, err := optionalOperands(args)
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("out")
			return run(cmd.Context(), cmd.OutOrStdout(), wire.NewOpcode(wire.CmdReadBlock, operands), new(wire.Block), out)
		},
	}

	writeCmd = &cobra.Command{
		Use:   "write [operands]",
		Short: "Write a block at the current seek position",
		Long: `Write a block at the current seek position (see seek-disk and seek-block).
Operands, if given, are sent as-is in the opcode bits outside the command field.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			operands, err := optionalOperands(args)
			if err != nil {
				return err
			}
			block, err := blockFromFlags(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), wire.NewOpcode(wire.CmdWriteBlock, operands), block, "")
		},
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Connect and print client statistics",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printStats(cmd.OutOrStdout())
		},
	}

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell on one connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return shell(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
)

func init() {
	for _, c := range []*cobra.Command{execCmd, writeCmd} {
		c.Flags().String("in", "", "file holding the block to write (zero padded to 256 bytes)")
		c.Flags().String("fill", "", "fill the block with this byte value instead of reading --in")
	}
	for _, c := range []*cobra.Command{execCmd, readCmd} {
		c.Flags().String("out", "", "write the received block to this file instead of dumping it")
	}
}

// run performs one exchange and reports the result.
func run(ctx context.Context, w io.Writer, op wire.Opcode, block *wire.Block, out string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := commandContext(ctx)
	defer cancel()

	start := time.Now()
	resp, err := client.Do(ctx, op, block)
	if err != nil {
		return fmt.Errorf("%s failed (%s error): %w", op, jbod.ErrorKind(err), err)
	}

	fmt.Fprintf(w, "%s ok in %s\n", op, since(start))
	if !resp.HasBlock() || block == nil {
		return nil
	}

	if out != "" {
		if err := os.WriteFile(out, block[:], 0o644); err != nil {
			return err
		}
		fmt.Fprintf(w, "block written to %s (xxh3 %016x)\n", out, block.Checksum())
		return nil
	}

	fmt.Fprintf(w, "block xxh3 %016x\n%s", block.Checksum(), hex.Dump(block[:]))
	return nil
}

func blockFromFlags(cmd *cobra.Command) (*wire.Block, error) {
	var block wire.Block

	if fill, _ := cmd.Flags().GetString("fill"); fill != "" {
		v, err := strconv.ParseUint(fill, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid --fill value %q: %w", fill, err)
		}
		block.Fill(byte(v))
		return &block, nil
	}

	in, _ := cmd.Flags().GetString("in")
	if in == "" {
		return nil, errors.New("a block is required: use --in or --fill")
	}

	f, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := io.ReadFull(f, block[:]); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &block, nil
}

// seek issues a seek command whose operand is the target disk or block.
func seek(ctx context.Context, w io.Writer, cmd wire.Command, arg string) error {
	target, err := parseUint32(arg)
	if err != nil {
		return err
	}
	return run(ctx, w, wire.NewOpcode(cmd, target), nil, "")
}

func optionalOperands(args []string) (uint32, error) {
	if len(args) == 0 {
		return 0, nil
	}
	return parseUint32(args[0])
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return uint32(v), nil
}

func printStats(w io.Writer) {
	s := client.Stats()
	p := client.PoolStats()

	fmt.Fprintf(w, "Server: %s\n", client.Addr())
	fmt.Fprintf(w, "  Requests: %d (errors %d: transport %d, protocol %d, address %d)\n",
		s.Requests, s.Errors, s.TransportErrors, s.ProtocolErrors, s.AddressErrors)
	fmt.Fprintf(w, "  Blocks: read %d, written %d\n", s.BlocksRead, s.BlocksWritten)
	fmt.Fprintf(w, "  Retries: %d\n", s.Retries)
	fmt.Fprintf(w, "  Connections: total %d, idle %d, active %d\n", p.TotalConns, p.IdleConns, p.ActiveConns)
	fmt.Fprintf(w, "  Circuit Breaker: %s\n", client.CircuitBreakerState())
}

const shellHelp = `Commands:
  mount                      - Mount the array
  unmount                    - Unmount the array
  seek-disk <disk>           - Move to a disk
  seek-block <block>         - Move to a block of the current disk
  exec <opcode> [fill]       - Send a raw opcode, fill byte used for write-block
  read                       - Read the block at the current position
  write <fill>               - Write a block filled with one byte value at the current position
  stats                      - Show client statistics
  quit                       - Exit the shell`

func shell(ctx context.Context, in io.Reader, w io.Writer) error {
	fmt.Fprintln(w, "JBOD shell, connected to", client.Addr())
	fmt.Fprintln(w, "Type 'help' for available commands.")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		if err := shellCommand(ctx, w, strings.ToLower(parts[0]), parts[1:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			fmt.Fprintf(w, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func shellCommand(ctx context.Context, w io.Writer, command string, args []string) error {
	switch command {
	case "mount":
		return run(ctx, w, wire.NewOpcode(wire.CmdMount, 0), nil, "")

	case "unmount":
		return run(ctx, w, wire.NewOpcode(wire.CmdUnmount, 0), nil, "")

	case "exec":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: exec <opcode> [fill]")
		}
		v, err := parseUint32(args[0])
		if err != nil {
			return err
		}
		block := new(wire.Block)
		if len(args) == 2 {
			fill, err := strconv.ParseUint(args[1], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid fill %q", args[1])
			}
			block.Fill(byte(fill))
		}
		return run(ctx, w, wire.Opcode(v), block, "")

	case "seek-disk", "seek-block":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <target>", command)
		}
		cmd := wire.CmdSeekToDisk
		if command == "seek-block" {
			cmd = wire.CmdSeekToBlock
		}
		return seek(ctx, w, cmd, args[0])

	case "read":
		if len(args) != 0 {
			return errors.New("usage: read")
		}
		return run(ctx, w, wire.NewOpcode(wire.CmdReadBlock, 0), new(wire.Block), "")

	case "write":
		if len(args) != 1 {
			return errors.New("usage: write <fill>")
		}
		fill, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid fill %q", args[0])
		}
		var block wire.Block
		block.Fill(byte(fill))
		return run(ctx, w, wire.NewOpcode(wire.CmdWriteBlock, 0), &block, "")

	case "stats":
		printStats(w)
		return nil

	case "help":
		fmt.Fprintln(w, shellHelp)
		return nil

	case "quit", "exit":
		fmt.Fprintln(w, "Goodbye!")
		return io.EOF
	}

	return fmt.Errorf("unknown command %q, type 'help' for available commands", command)
}
