package ledger

import (
	"context"
	"fmt"

	"github.com/L3pereira/ipfs-eth-console/pkg/cidutil"
	"github.com/L3pereira/ipfs-eth-console/pkg/core"
)

// Contract method names understood by the ledger.
const (
	MethodStoreString = "storeCIDAsString"
	MethodGetString   = "getCIDAsString"
	MethodStoreStruct = "storeCIDAsStruct"
	MethodGetStruct   = "getCIDAsStruct"
)

type method struct {
	slot    string
	mutates bool
	args    []argKind
	// store maps validated arguments to the value written to the slot.
	store func(args core.Tuple) core.Token
	// zero is what a view returns for a slot that was never written.
	zero func() core.Token
}

var methods = map[string]method{
	MethodStoreString: {
		slot:    "cid_string",
		mutates: true,
		args:    []argKind{{name: "cid", str: true}},
		store:   func(args core.Tuple) core.Token { return args[0] },
	},
	MethodGetString: {
		slot: "cid_string",
		zero: func() core.Token { return core.String("") },
	},
	MethodStoreStruct: {
		slot:    "cid_struct",
		mutates: true,
		args: []argKind{
			{name: "digest", bytes: core.DigestSize},
			{name: "hashFunction", bytes: 2},
			{name: "size", uint: 8},
		},
		store: func(args core.Tuple) core.Token { return args },
	},
	MethodGetStruct: {
		slot: "cid_struct",
		zero: func() core.Token {
			return core.Tuple{
				make(core.FixedBytes, core.DigestSize),
				make(core.FixedBytes, 2),
				core.NewUint(0),
			}
		},
	},
}

// CIDContract is a typed view of the content-identifier registry deployed
// at one address. Calls are sent from a single wallet.
type CIDContract struct {
	client  Client
	address core.Address
	from    core.Address
	bridge  cidutil.Bridge
}

// NewCIDContract binds the registry at address. Transactions are sent from from.
func NewCIDContract(client Client, address, from core.Address, bridge cidutil.Bridge) *CIDContract {
	return &CIDContract{client: client, address: address, from: from, bridge: bridge}
}

// StoreString records id verbatim in the string slot.
func (c *CIDContract) StoreString(ctx context.Context, id core.ContentID) (core.TxHash, error) {
	return c.client.Call(ctx, c.address, MethodStoreString, core.Tuple{core.String(id)}, c.from)
}

// StoreFields splits id into its multihash fields and records them in the
// struct slot. Identifiers the bridge cannot represent are rejected before
// anything is submitted.
func (c *CIDContract) StoreFields(ctx context.Context, id core.ContentID) (core.TxHash, error) {
	f, err := c.bridge.Decode(id)
	if err != nil {
		return core.TxHash{}, err
	}
	return c.client.Call(ctx, c.address, MethodStoreStruct, c.bridge.ToLedgerFields(f), c.from)
}

// String returns the identifier held in the string slot, or "" when unset.
func (c *CIDContract) String(ctx context.Context) (core.ContentID, error) {
	tok, err := c.client.Query(ctx, c.address, MethodGetString)
	if err != nil {
		return "", err
	}
	s, ok := tok.(core.String)
	if !ok {
		return "", fmt.Errorf("%w: %s returned %T", core.ErrUnexpectedFieldShape, MethodGetString, tok)
	}
	return core.ContentID(s), nil
}

// Fields returns the raw multihash fields held in the struct slot.
func (c *CIDContract) Fields(ctx context.Context) (core.MultihashFields, error) {
	tok, err := c.client.Query(ctx, c.address, MethodGetStruct)
	if err != nil {
		return core.MultihashFields{}, err
	}
	return c.bridge.FieldsFromLedger(tok)
}

// FromFields rebuilds the identifier held in the struct slot.
func (c *CIDContract) FromFields(ctx context.Context) (core.ContentID, error) {
	tok, err := c.client.Query(ctx, c.address, MethodGetStruct)
	if err != nil {
		return "", err
	}
	return c.bridge.FromLedgerFields(tok)
}
