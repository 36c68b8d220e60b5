package ucs03

import (
	"fmt"
	"math/big"

	"zkgm/primitives"
)

// Document type tags.
const (
	DocCall       = "call"
	DocBatch      = "batch"
	DocTokenOrder = "token_order"
)

// Document is the JSON form of an instruction used by the CLI and HTTP API.
// Amounts are decimal strings; byte fields are 0x hex.
type Document struct {
	Type string `json:"type"`

	// call
	SendTransaction  bool           `json:"send_transaction,omitempty"`
	ContractAddress  primitives.Hex `json:"contract_address,omitempty"`
	ContractCallData primitives.Hex `json:"contract_call_data,omitempty"`

	// batch
	Instructions []Document `json:"instructions,omitempty"`

	// token_order
	Sender            primitives.Hex `json:"sender,omitempty"`
	Receiver          primitives.Hex `json:"receiver,omitempty"`
	BaseToken         primitives.Hex `json:"base_token,omitempty"`
	BaseAmount        string         `json:"base_amount,omitempty"`
	BaseTokenSymbol   string         `json:"base_token_symbol,omitempty"`
	BaseTokenName     string         `json:"base_token_name,omitempty"`
	BaseTokenDecimals uint8          `json:"base_token_decimals,omitempty"`
	BaseTokenPath     string         `json:"base_token_path,omitempty"`
	QuoteToken        primitives.Hex `json:"quote_token,omitempty"`
	QuoteAmount       string         `json:"quote_amount,omitempty"`
}

// ToDocument converts ins to its JSON form.
func ToDocument(ins Instruction) Document {
	switch v := value(ins).(type) {
	case Call:
		return Document{
			Type:             DocCall,
			SendTransaction:  v.SendTransaction,
			ContractAddress:  primitives.HexFromBytes(v.ContractAddress),
			ContractCallData: primitives.HexFromBytes(v.ContractCallData),
		}
	case TokenOrder:
		return Document{
			Type:              DocTokenOrder,
			Sender:            primitives.HexFromBytes(v.Sender),
			Receiver:          primitives.HexFromBytes(v.Receiver),
			BaseToken:         primitives.HexFromBytes(v.BaseToken),
			BaseAmount:        amountOrZero(v.BaseAmount).String(),
			BaseTokenSymbol:   v.BaseTokenSymbol,
			BaseTokenName:     v.BaseTokenName,
			BaseTokenDecimals: v.BaseTokenDecimals,
			BaseTokenPath:     amountOrZero(v.BaseTokenPath).String(),
			QuoteToken:        primitives.HexFromBytes(v.QuoteToken),
			QuoteAmount:       amountOrZero(v.QuoteAmount).String(),
		}
	case Batch:
		doc := Document{Type: DocBatch, Instructions: make([]Document, 0, len(v.Instructions))}
		for _, child := range v.Instructions {
			doc.Instructions = append(doc.Instructions, ToDocument(child))
		}
		return doc
	}
	return Document{}
}

// FromDocument converts a JSON document into an instruction, enforcing the
// codec's depth limit.
func (c Codec) FromDocument(doc Document) (Instruction, error) {
	return c.fromDocument(doc, 0)
}

func (c Codec) fromDocument(doc Document, depth int) (Instruction, error) {
	switch doc.Type {
	case DocCall:
		return Call{
			SendTransaction:  doc.SendTransaction,
			ContractAddress:  doc.ContractAddress.Bytes(),
			ContractCallData: doc.ContractCallData.Bytes(),
		}, nil
	case DocTokenOrder:
		baseAmount, err := parseAmount("base_amount", doc.BaseAmount)
		if err != nil {
			return nil, err
		}
		path, err := parseAmount("base_token_path", doc.BaseTokenPath)
		if err != nil {
			return nil, err
		}
		quoteAmount, err := parseAmount("quote_amount", doc.QuoteAmount)
		if err != nil {
			return nil, err
		}
		return TokenOrder{
			Sender:            doc.Sender.Bytes(),
			Receiver:          doc.Receiver.Bytes(),
			BaseToken:         doc.BaseToken.Bytes(),
			BaseAmount:        baseAmount,
			BaseTokenSymbol:   doc.BaseTokenSymbol,
			BaseTokenName:     doc.BaseTokenName,
			BaseTokenDecimals: doc.BaseTokenDecimals,
			BaseTokenPath:     path,
			QuoteToken:        doc.QuoteToken.Bytes(),
			QuoteAmount:       quoteAmount,
		}, nil
	case DocBatch:
		if depth+1 > c.maxDepth() {
			return nil, fmt.Errorf("%w: limit %d", ErrMaxDepthExceeded, c.maxDepth())
		}
		b := Batch{Instructions: make([]Instruction, 0, len(doc.Instructions))}
		for _, child := range doc.Instructions {
			ins, err := c.fromDocument(child, depth+1)
			if err != nil {
				return nil, err
			}
			b.Instructions = append(b.Instructions, ins)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: document type %q", ErrUnknownInstructionVariant, doc.Type)
	}
}

func parseAmount(name, s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q is not a decimal integer", ErrAmountOutOfRange, name, s)
	}
	return checkUint256(name, v)
}
