package chains

import (
	"fmt"
	"sort"
	"strings"
)

// Family - chain backend family, selects the submission backend
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilyCosmos Family = "cosmos"
	FamilyAptos  Family = "aptos" // Move-style
	FamilySui    Family = "sui"   // object model
	FamilySVM    Family = "svm"
)

var knownFamilies = map[Family]struct{}{
	FamilyEVM:    {},
	FamilyCosmos: {},
	FamilyAptos:  {},
	FamilySui:    {},
	FamilySVM:    {},
}

// ParseFamily parses a family tag, case-insensitive.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownFamilies[f]; !ok {
		return "", fmt.Errorf("unknown chain family %q", s)
	}
	return f, nil
}

// IsMoveStyle reports whether the family uses the short Move salt.
func (f Family) IsMoveStyle() bool {
	return f == FamilyAptos
}

// UniversalChainID identifies a chain across families, e.g. "ethereum.11155111"
// or "union.union-testnet-10".
type UniversalChainID string

// ParseUniversalChainID validates the "<namespace>.<chain id>" form.
func ParseUniversalChainID(s string) (UniversalChainID, error) {
	ns, id, ok := strings.Cut(s, ".")
	if !ok || ns == "" || id == "" {
		return "", fmt.Errorf("invalid universal chain id %q", s)
	}
	return UniversalChainID(s), nil
}

// Namespace returns the part before the first dot.
func (u UniversalChainID) Namespace() string {
	ns, _, _ := strings.Cut(string(u), ".")
	return ns
}

// ChainID returns the native chain id (the part after the first dot).
func (u UniversalChainID) ChainID() string {
	_, id, _ := strings.Cut(string(u), ".")
	return id
}

func (u UniversalChainID) String() string { return string(u) }

// Chain - static description of a chain the client can submit on
type Chain struct {
	UniversalChainID UniversalChainID `mapstructure:"universal_chain_id" toml:"universal_chain_id" json:"universal_chain_id"`
	Family           Family           `mapstructure:"family" toml:"family" json:"family"`
	DisplayName      string           `mapstructure:"display_name" toml:"display_name" json:"display_name"`
	RPCURL           string           `mapstructure:"rpc_url" toml:"rpc_url" json:"rpc_url"`
	UCS03Address     string           `mapstructure:"ucs03_address" toml:"ucs03_address" json:"ucs03_address"`
	ExplorerTxURL    string           `mapstructure:"explorer_tx_url" toml:"explorer_tx_url" json:"explorer_tx_url,omitempty"`
}

// ExplorerURL - Generate explorer URL for a transaction hash
func (c Chain) ExplorerURL(txHash string) string {
	if c.ExplorerTxURL == "" {
		return ""
	}
	if strings.Contains(c.ExplorerTxURL, "%s") {
		return fmt.Sprintf(c.ExplorerTxURL, txHash)
	}
	return strings.TrimRight(c.ExplorerTxURL, "/") + "/" + txHash
}

// Context - the chain a request is submitted on, plus the submitting account
type Context struct {
	Chain

	// Sender is the account that signs, in the family's native format.
	Sender string
	// SafeAddress is set when the sender is a multisig; submission then
	// yields a proposal hash instead of a transaction hash.
	SafeAddress string
}

// IsMultisig reports whether submissions go through a multisig proposal.
func (c Context) IsMultisig() bool {
	return c.SafeAddress != ""
}

// Registry is a read-only lookup of known chains.
type Registry struct {
	chains map[UniversalChainID]Chain
}

// NewRegistry validates the chains and indexes them by universal id.
func NewRegistry(list []Chain) (*Registry, error) {
	r := &Registry{chains: make(map[UniversalChainID]Chain, len(list))}
	for _, c := range list {
		if _, err := ParseUniversalChainID(string(c.UniversalChainID)); err != nil {
			return nil, err
		}
		if _, err := ParseFamily(string(c.Family)); err != nil {
			return nil, fmt.Errorf("chain %s: %w", c.UniversalChainID, err)
		}
		if _, dup := r.chains[c.UniversalChainID]; dup {
			return nil, fmt.Errorf("duplicate chain %s", c.UniversalChainID)
		}
		r.chains[c.UniversalChainID] = c
	}
	return r, nil
}

// Get returns the chain with the given id.
func (r *Registry) Get(id UniversalChainID) (Chain, bool) {
	c, ok := r.chains[id]
	return c, ok
}

// All returns the chains sorted by universal id.
func (r *Registry) All() []Chain {
	out := make([]Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniversalChainID < out[j].UniversalChainID })
	return out
}
