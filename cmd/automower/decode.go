package main

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/enicky/automower-ble/internal/protocol"
	"github.com/enicky/automower-ble/internal/ui"
)

// decodeCmd decodes a captured frame offline
var decodeCmd = &cobra.Command{
	Use:   "decode <kind> <hex>",
	Short: "Decode a captured response frame",
	Long: `Decode a response frame captured from a BLE trace without connecting
to a mower.

The channel id must be the one the frame was captured on. When --channel
is not given it is read from the frame itself, which skips the session
check.`,
	Example: `  automower decode device-type 02fd1300b63b604701e601af5a1209000002001701c803

  # Gardena state numbering
  automower decode mower-state "02 fd 12 00 ..." --brand gardena`,
	Args: cobra.ExactArgs(2),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	kind, err := protocol.ParseResponseKind(args[0])
	if err != nil {
		return err
	}
	buf, err := parseHex(args[1])
	if err != nil {
		return fmt.Errorf("invalid frame: %w", err)
	}

	channel, err := decodeChannel(buf)
	if err != nil {
		return err
	}
	brand := protocol.BrandHusqvarna
	if brandFlag != "" {
		if brand, err = protocol.ParseBrand(brandFlag); err != nil {
			return err
		}
	}

	resp, err := protocol.NewDecoder(channel, brand).Decode(kind, buf)
	p := ui.NewPrinter(cmd.OutOrStdout())
	if err != nil {
		if outputFormat == "box" {
			p.PrintError("Decode "+kind.String(), err, decodeHints(err)...)
		}
		return fmt.Errorf("decode failed: %w", err)
	}
	return printResponse(cmd.OutOrStdout(), kind, resp.String())
}

// decodeChannel uses --channel when given, otherwise the frame's own channel
func decodeChannel(buf []byte) (protocol.ChannelID, error) {
	if channelFlag != "" {
		return parseChannel(channelFlag)
	}
	if len(buf) < 8 {
		return 0, nil
	}
	return protocol.ChannelID(binary.LittleEndian.Uint32(buf[4:8])), nil
}

func decodeHints(err error) []string {
	var de *protocol.DecodeError
	if !errors.As(err, &de) {
		return nil
	}
	switch de.Type {
	case protocol.ErrTypeChecksumMismatch:
		return []string{"The capture may be truncated or have a corrupted byte", "Check that the whole notification was copied"}
	case protocol.ErrTypeStructuralMismatch:
		return []string{"Check that the kind matches the request the frame answers", "Check --channel matches the capture session"}
	case protocol.ErrTypeTooShort:
		return []string{"The frame may be split across several notifications; join them"}
	case protocol.ErrTypeUnknownCode:
		return []string{"The mower reported a value missing from the lookup tables"}
	default:
		return nil
	}
}

// parseHex accepts hex with optional spaces, colons and a 0x prefix
func parseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[:2], "0x") {
		s = s[2:]
	}
	s = strings.NewReplacer(" ", "", ":", "", "-", "", "\n", "").Replace(s)
	if s == "" {
		return nil, errors.New("empty hex string")
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits (%d)", len(s))
	}
	return hex.DecodeString(s)
}
