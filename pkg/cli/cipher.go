package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/cipherbench/pkg/cipher"
	"github.com/mchmarny/cipherbench/pkg/report"
	urfave "github.com/urfave/cli/v3"
)

var errTextRequired = errors.New("text argument required")

func newEncodeCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "encode",
		Usage:           "Encode a single string",
		ArgsUsage:       "<text>",
		HideHelpCommand: true,
		Flags:           []urfave.Flag{newSeedFlag()},
		Action:          cmdEncode,
	}
}

func newDecodeCmd() *urfave.Command {
	return &urfave.Command{
		Name:            "decode",
		Usage:           "Decode a single ciphertext",
		ArgsUsage:       "<ciphertext>",
		HideHelpCommand: true,
		Action:          cmdDecode,
	}
}

type codecResult struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

func cmdEncode(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errTextRequired
	}
	text := cmd.Args().First()

	opts := []cipher.Option{cipher.WithFillerMax(cfg.Config.FillerRune())}
	if seed := cmd.Uint64(seedFlagName); seed != 0 {
		opts = append(opts, cipher.WithSource(cipher.NewSource(seed)))
	}

	t, err := cipher.New(text, opts...)
	if err != nil {
		return fmt.Errorf("creating transform: %w", err)
	}
	t.Encode()

	return writeCodec(cmd, cfg.Format, &codecResult{Input: text, Output: t.Output()})
}

func cmdDecode(_ context.Context, cmd *urfave.Command) error {
	cfg := getConfig(cmd)
	if cmd.NArg() != 1 {
		return errTextRequired
	}
	text := cmd.Args().First()

	out, err := cipher.Decode(text)
	if err != nil {
		return fmt.Errorf("decoding %q: %w", text, err)
	}

	return writeCodec(cmd, cfg.Format, &codecResult{Input: text, Output: out})
}

func writeCodec(cmd *urfave.Command, format string, r *codecResult) error {
	w := cmd.Root().Writer
	if format == report.FormatTable {
		_, err := fmt.Fprintln(w, r.Output)
		return err
	}
	return encode(w, format, r)
}
