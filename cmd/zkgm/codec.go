package main

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"zkgm/chains"
	"zkgm/primitives"
	"zkgm/salt"
	"zkgm/ucs03"
)

var (
	asPacket   bool
	saltFamily string
	saltHex    string
	packetPath string
)

var encodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Encode a JSON instruction document",
	Long:  `Encode reads an instruction document (a file, or stdin) and prints the ABI encoding. With --packet the instruction is wrapped in a packet envelope with a fresh or given salt.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		data, err := readInput(cmd, name)
		if err != nil {
			return err
		}
		var doc ucs03.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("invalid instruction document: %w", err)
		}
		codec := cfg.InstructionCodec()
		ins, err := codec.FromDocument(doc)
		if err != nil {
			return err
		}
		if !asPacket {
			out, err := codec.Encode(ins)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), primitives.HexFromBytes(out))
			return nil
		}

		packet, err := newPacket(ins)
		if err != nil {
			return err
		}
		out, err := codec.EncodePacket(packet)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), primitives.HexFromBytes(out))
		return nil
	},
}

func newPacket(ins ucs03.Instruction) (ucs03.Packet, error) {
	var (
		sl  salt.Salt
		err error
	)
	if saltHex != "" {
		sl, err = salt.Parse(saltHex)
	} else {
		var family chains.Family
		if family, err = chains.ParseFamily(saltFamily); err == nil {
			sl, err = salt.Generate(family)
		}
	}
	if err != nil {
		return ucs03.Packet{}, err
	}
	packet := ucs03.NewPacket(sl.Bytes32(), ins)
	if packetPath != "" {
		path, ok := new(big.Int).SetString(packetPath, 10)
		if !ok {
			return ucs03.Packet{}, fmt.Errorf("path must be a decimal integer, got %q", packetPath)
		}
		packet.Path = path
	}
	return packet, nil
}

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode an ABI encoded instruction or packet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := primitives.ParseHex(args[0])
		if err != nil {
			return err
		}
		codec := cfg.InstructionCodec()
		if !asPacket {
			ins, err := codec.Decode(h.Bytes())
			if err != nil {
				return err
			}
			return printJSON(cmd, ucs03.ToDocument(ins))
		}
		packet, err := codec.DecodePacket(h.Bytes())
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"salt":        primitives.HexFromBytes(packet.Salt[:]),
			"path":        packet.Path.String(),
			"instruction": ucs03.ToDocument(packet.Instruction),
		})
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd, decodeCmd)
	encodeCmd.Flags().BoolVar(&asPacket, "packet", false, "wrap the instruction in a packet envelope")
	encodeCmd.Flags().StringVar(&saltFamily, "family", string(chains.FamilyEVM), "chain family the salt is generated for")
	encodeCmd.Flags().StringVar(&saltHex, "salt", "", "use this salt instead of generating one")
	encodeCmd.Flags().StringVar(&packetPath, "path", "", "forwarding path (decimal), 0 when empty")
	decodeCmd.Flags().BoolVar(&asPacket, "packet", false, "decode a packet envelope")
}
