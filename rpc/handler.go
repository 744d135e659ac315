package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/arcadechain/assets"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/indexer"
	"github.com/tolelom/arcadechain/storage"
	"github.com/tolelom/arcadechain/vm/modules/cartridge"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	db      storage.DB
	indexer *indexer.Indexer
	methods map[string]func(Request) Response
}

// NewHandler creates an RPC Handler. State reads go through a fresh StateDB
// over db, so callers only ever see committed blocks.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, db storage.DB, idx *indexer.Indexer) *Handler {
	h := &Handler{bc: bc, mempool: mempool, db: db, indexer: idx}
	h.methods = map[string]func(Request) Response{
		"sendTx":                  h.sendTx,
		"getReceipt":              h.getReceipt,
		"getBlockHeight":          func(req Request) Response { return okResponse(req.ID, h.bc.Height()) },
		"getBlock":                h.getBlock,
		"getAccount":              h.getAccount,
		"getAsset":                h.getAsset,
		"getCollection":           h.getCollection,
		"getMachineSlot":          h.getMachineSlot,
		"getCartridgeLink":        h.getCartridgeLink,
		"getGamePrice":            h.getGamePrice,
		"getAssetsByOwner":        h.indexed(h.indexer.GetAssetsByOwner),
		"getCartridgesByGame":     h.indexed(h.indexer.GetCartridgesByGame),
		"getMachinesByCollection": h.indexed(h.indexer.GetMachinesByCollection),
		"getMempoolSize":          func(req Request) Response { return okResponse(req.ID, h.mempool.Size()) },
	}
	return h
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	m, ok := h.methods[req.Method]
	if !ok {
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
	return m(req)
}

func (h *Handler) service() *assets.Service {
	return assets.New(storage.NewStateDB(h.db))
}

// stateError maps a read failure to a response.
func stateError(id any, err error) Response {
	if errors.Is(err, core.ErrNotFound) || errors.Is(err, assets.ErrNoAppData) {
		return errResponse(id, CodeNotFound, err.Error())
	}
	return errResponse(id, CodeInternalError, err.Error())
}

type addressParams struct {
	Address crypto.Address `json:"address"`
}

func parseAddress(req Request) (crypto.Address, *Response) {
	var params addressParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return crypto.Address{}, &resp
	}
	if params.Address.IsZero() {
		resp := errResponse(req.ID, CodeInvalidParams, "address is required")
		return crypto.Address{}, &resp
	}
	return params.Address, nil
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		}
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return stateError(req.ID, err)
	}
	if block == nil {
		return errResponse(req.ID, CodeNotFound, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getReceipt(req Request) Response {
	var params struct {
		TxID string `json:"tx_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
	}
	if params.TxID == "" {
		return errResponse(req.ID, CodeInvalidParams, "tx_id is required")
	}
	rc, err := h.bc.GetReceipt(params.TxID)
	if err != nil {
		return stateError(req.ID, err)
	}
	return okResponse(req.ID, rc)
}

func (h *Handler) getAccount(req Request) Response {
	addr, bad := parseAddress(req)
	if bad != nil {
		return *bad
	}
	acc, err := storage.NewStateDB(h.db).GetAccount(addr)
	if err != nil {
		return stateError(req.ID, err)
	}
	return okResponse(req.ID, acc)
}

func (h *Handler) getAsset(req Request) Response {
	addr, bad := parseAddress(req)
	if bad != nil {
		return *bad
	}
	a, err := h.service().GetAsset(addr)
	if err != nil {
		return stateError(req.ID, err)
	}
	return okResponse(req.ID, a)
}

func (h *Handler) getCollection(req Request) Response {
	addr, bad := parseAddress(req)
	if bad != nil {
		return *bad
	}
	c, err := h.service().GetCollection(addr)
	if err != nil {
		return stateError(req.ID, err)
	}
	return okResponse(req.ID, c)
}

// SlotResult reports which cartridge, if any, occupies a machine.
type SlotResult struct {
	Machine   crypto.Address  `json:"machine"`
	Cartridge *crypto.Address `json:"cartridge"`
}

func (h *Handler) getMachineSlot(req Request) Response {
	addr, bad := parseAddress(req)
	if bad != nil {
		return *bad
	}
	slot, err := h.service().AppData(addr)
	if err != nil {
		return stateError(req.ID, err)
	}
	occupant, err := optionalAddress(slot)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, "machine slot: "+err.Error())
	}
	return okResponse(req.ID, SlotResult{Machine: addr, Cartridge: occupant})
}

// LinkResult reports the raw linked-data blob of a cartridge and, when it
// holds an address, the machine it names.
type LinkResult struct {
	Cartridge crypto.Address  `json:"cartridge"`
	Machine   *crypto.Address `json:"machine"`
	Raw       string          `json:"raw"`
}

func (h *Handler) getCartridgeLink(req Request) Response {
	addr, bad := parseAddress(req)
	if bad != nil {
		return *bad
	}
	link, err := h.service().LinkedData(addr)
	if err != nil {
		return stateError(req.ID, err)
	}
	res := LinkResult{Cartridge: addr, Raw: hex.EncodeToString(link)}
	if m, err := optionalAddress(link); err == nil {
		res.Machine = m
	}
	return okResponse(req.ID, res)
}

func (h *Handler) getGamePrice(req Request) Response {
	addr, bad := parseAddress(req)
	if bad != nil {
		return *bad
	}
	raw, err := h.service().CollectionData(addr)
	if err != nil {
		return stateError(req.ID, err)
	}
	var data cartridge.GameCollectionData
	if err := data.UnmarshalBinary(raw); err != nil {
		return errResponse(req.ID, CodeNotFound, fmt.Sprintf("collection %s holds no game data", addr))
	}
	return okResponse(req.ID, map[string]any{"game": addr, "version": data.Version, "price": data.Price})
}

func (h *Handler) indexed(get func(string) ([]string, error)) func(Request) Response {
	return func(req Request) Response {
		addr, bad := parseAddress(req)
		if bad != nil {
			return *bad
		}
		ids, err := get(addr.String())
		if err != nil {
			return stateError(req.ID, err)
		}
		if ids == nil {
			ids = []string{}
		}
		return okResponse(req.ID, ids)
	}
}

func (h *Handler) sendTx(req Request) Response {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if err := h.mempool.Add(&tx); err != nil {
		return errResponse(req.ID, CodeRejected, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}

// optionalAddress reads an empty blob as nil and a 32-byte blob as an
// address.
func optionalAddress(b []byte) (*crypto.Address, error) {
	if len(b) == 0 {
		return nil, nil
	}
	addr, err := crypto.AddressFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}
