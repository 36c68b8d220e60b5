package channel

import (
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"

	"zkgm/chains"
)

// Fee - a fee charged for sending over a channel
type Fee struct {
	Action string `toml:"action" json:"action"`
	Token  string `toml:"token" json:"token"`
	Amount string `toml:"amount" json:"amount"`
}

// Record is a channel row as reported by a source. Any leg may be absent.
type Record struct {
	SourceUniversalChainID      chains.UniversalChainID `toml:"source_universal_chain_id" json:"source_universal_chain_id"`
	SourceConnectionID          *uint32                 `toml:"source_connection_id" json:"source_connection_id"`
	SourceChannelID             *uint32                 `toml:"source_channel_id" json:"source_channel_id"`
	SourcePortID                *string                 `toml:"source_port_id" json:"source_port_id"`
	DestinationUniversalChainID chains.UniversalChainID `toml:"destination_universal_chain_id" json:"destination_universal_chain_id"`
	DestinationConnectionID     *uint32                 `toml:"destination_connection_id" json:"destination_connection_id"`
	DestinationChannelID        *uint32                 `toml:"destination_channel_id" json:"destination_channel_id"`
	DestinationPortID           *string                 `toml:"destination_port_id" json:"destination_port_id"`
	Fees                        []Fee                   `toml:"fees" json:"fees,omitempty"`
}

// Channel is a fully specified route between two chains.
type Channel struct {
	SourceUniversalChainID      chains.UniversalChainID `json:"source_universal_chain_id"`
	SourceConnectionID          uint32                  `json:"source_connection_id"`
	SourceChannelID             uint32                  `json:"source_channel_id"`
	SourcePortID                string                  `json:"source_port_id"`
	DestinationUniversalChainID chains.UniversalChainID `json:"destination_universal_chain_id"`
	DestinationConnectionID     uint32                  `json:"destination_connection_id"`
	DestinationChannelID        uint32                  `json:"destination_channel_id"`
	DestinationPortID           string                  `json:"destination_port_id"`
	Fees                        []Fee                   `json:"fees,omitempty"`
}

// Connects reports whether the record runs from src to dst.
func (r Record) Connects(src, dst chains.UniversalChainID) bool {
	return r.SourceUniversalChainID == src && r.DestinationUniversalChainID == dst
}

// MissingLegs names every absent or empty leg.
func (r Record) MissingLegs() []string {
	var missing []string
	if r.SourceUniversalChainID == "" {
		missing = append(missing, "source_universal_chain_id")
	}
	if r.SourceConnectionID == nil {
		missing = append(missing, "source_connection_id")
	}
	if r.SourceChannelID == nil {
		missing = append(missing, "source_channel_id")
	}
	if r.SourcePortID == nil || *r.SourcePortID == "" {
		missing = append(missing, "source_port_id")
	}
	if r.DestinationUniversalChainID == "" {
		missing = append(missing, "destination_universal_chain_id")
	}
	if r.DestinationConnectionID == nil {
		missing = append(missing, "destination_connection_id")
	}
	if r.DestinationChannelID == nil {
		missing = append(missing, "destination_channel_id")
	}
	if r.DestinationPortID == nil || *r.DestinationPortID == "" {
		missing = append(missing, "destination_port_id")
	}
	return missing
}

// Channel converts the record. A record with any missing leg is rejected
// as a whole with ErrMissingLeg; no partial channel is returned.
func (r Record) Channel() (Channel, error) {
	if missing := r.MissingLegs(); len(missing) > 0 {
		return Channel{}, errorsmod.Wrap(ErrMissingLeg, strings.Join(missing, ", "))
	}
	return Channel{
		SourceUniversalChainID:      r.SourceUniversalChainID,
		SourceConnectionID:          *r.SourceConnectionID,
		SourceChannelID:             *r.SourceChannelID,
		SourcePortID:                *r.SourcePortID,
		DestinationUniversalChainID: r.DestinationUniversalChainID,
		DestinationConnectionID:     *r.DestinationConnectionID,
		DestinationChannelID:        *r.DestinationChannelID,
		DestinationPortID:           *r.DestinationPortID,
		Fees:                        append([]Fee(nil), r.Fees...),
	}, nil
}

func (c Channel) String() string {
	return fmt.Sprintf("%s/%d -> %s/%d", c.SourceUniversalChainID, c.SourceChannelID, c.DestinationUniversalChainID, c.DestinationChannelID)
}
