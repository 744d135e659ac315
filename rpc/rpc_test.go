package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/events"
	"github.com/tolelom/arcadechain/indexer"
	"github.com/tolelom/arcadechain/internal/testutil"
	"github.com/tolelom/arcadechain/storage"
	"github.com/tolelom/arcadechain/vm/modules/cartridge"
	"github.com/tolelom/arcadechain/wallet"
)

const chainID = "arcade-test"

var (
	machineAddr   = crypto.AddressFromSeed("rpc/machine")
	cartridgeAddr = crypto.AddressFromSeed("rpc/cartridge")
	gameAddr      = crypto.AddressFromSeed("rpc/game")
	ownerAddr     = crypto.AddressFromSeed("rpc/owner")
)

type fixture struct {
	handler *Handler
	emitter *events.Emitter
	mempool *core.Mempool
	db      *testutil.MemDB
}

// newFixture commits a machine holding cartridgeAddr and a game collection
// priced at 2500.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewMemDB()
	state := storage.NewStateDB(db)

	price, _ := cartridge.GameCollectionData{Price: 2500}.MarshalBinary()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(state.SetAccount(&core.Account{Address: ownerAddr, Balance: 42, Nonce: 3}))
	must(state.SetAsset(&core.Asset{
		Address: machineAddr,
		Owner:   ownerAddr,
		Name:    "ARCADE-01",
		AppData: &core.AppData{DataAuthority: machineAddr, Data: cartridgeAddr.Bytes()},
	}))
	must(state.SetAsset(&core.Asset{
		Address:    cartridgeAddr,
		Owner:      ownerAddr,
		Collection: &gameAddr,
		Name:       "Zork 1",
		LinkedData: machineAddr.Bytes(),
	}))
	must(state.SetAsset(&core.Asset{Address: ownerAddr, Owner: ownerAddr, Name: "no slot"}))
	must(state.SetCollection(&core.Collection{Address: gameAddr, Name: "Zork", LinkedData: true, Data: price}))
	must(state.Commit())

	emitter := events.NewEmitter(zerolog.Nop())
	mempool := core.NewMempool(chainID)
	bc := core.NewBlockchain(testutil.NewBlockStore())
	idx := indexer.New(db, emitter, zerolog.Nop())
	return &fixture{
		handler: NewHandler(bc, mempool, db, idx),
		emitter: emitter,
		mempool: mempool,
		db:      db,
	}
}

func (f *fixture) call(t *testing.T, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	resp := f.handler.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
	// Round-trip through JSON so results compare as a client sees them.
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var out Response
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func result(t *testing.T, resp Response) map[string]any {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	m, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("result is %T, want object", resp.Result)
	}
	return m
}

func TestGetMachineSlot(t *testing.T) {
	f := newFixture(t)

	got := result(t, f.call(t, "getMachineSlot", addressParams{Address: machineAddr}))
	if got["cartridge"] != cartridgeAddr.String() {
		t.Errorf("cartridge: got %v, want %s", got["cartridge"], cartridgeAddr)
	}

	resp := f.call(t, "getMachineSlot", addressParams{Address: ownerAddr})
	if resp.Error == nil || resp.Error.Code != CodeNotFound {
		t.Errorf("asset without app data: got %+v, want not found", resp.Error)
	}
}

func TestGetCartridgeLink(t *testing.T) {
	f := newFixture(t)
	got := result(t, f.call(t, "getCartridgeLink", addressParams{Address: cartridgeAddr}))
	if got["machine"] != machineAddr.String() {
		t.Errorf("machine: got %v, want %s", got["machine"], machineAddr)
	}
	if got["raw"] != machineAddr.String() {
		t.Errorf("raw: got %v", got["raw"])
	}
}

func TestGetGamePrice(t *testing.T) {
	f := newFixture(t)
	got := result(t, f.call(t, "getGamePrice", addressParams{Address: gameAddr}))
	if got["price"] != float64(2500) {
		t.Errorf("price: got %v, want 2500", got["price"])
	}
}

func TestGetAccountUnknownIsZero(t *testing.T) {
	f := newFixture(t)
	got := result(t, f.call(t, "getAccount", addressParams{Address: crypto.AddressFromSeed("nobody")}))
	if got["balance"] != float64(0) || got["nonce"] != float64(0) {
		t.Errorf("unknown account: got %v", got)
	}
	got = result(t, f.call(t, "getAccount", addressParams{Address: ownerAddr}))
	if got["balance"] != float64(42) {
		t.Errorf("balance: got %v, want 42", got["balance"])
	}
}

func TestMissingAndBadParams(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		method string
		params any
		code   int
	}{
		{"getAsset", addressParams{Address: crypto.AddressFromSeed("missing")}, CodeNotFound},
		{"getCollection", map[string]string{}, CodeInvalidParams},
		{"getAsset", map[string]string{"address": "zz"}, CodeInvalidParams},
		{"getReceipt", map[string]string{"tx_id": "nope"}, CodeNotFound},
		{"noSuchMethod", nil, CodeMethodNotFound},
	}
	for _, tt := range tests {
		resp := f.call(t, tt.method, tt.params)
		if resp.Error == nil || resp.Error.Code != tt.code {
			t.Errorf("%s(%v): got %+v, want code %d", tt.method, tt.params, resp.Error, tt.code)
		}
	}
}

func TestIndexedQueries(t *testing.T) {
	f := newFixture(t)
	f.emitter.Emit(events.Event{
		Type: events.EventCartridgePrinted,
		Data: map[string]any{"cartridge": cartridgeAddr.String(), "game": gameAddr.String(), "owner": ownerAddr.String()},
	})

	resp := f.call(t, "getCartridgesByGame", addressParams{Address: gameAddr})
	ids, ok := resp.Result.([]any)
	if resp.Error != nil || !ok || len(ids) != 1 || ids[0] != cartridgeAddr.String() {
		t.Fatalf("getCartridgesByGame: got %+v", resp)
	}

	resp = f.call(t, "getMachinesByCollection", addressParams{Address: gameAddr})
	if ids, ok := resp.Result.([]any); !ok || len(ids) != 0 {
		t.Errorf("empty index: got %+v, want []", resp.Result)
	}
}

func TestSendTx(t *testing.T) {
	f := newFixture(t)
	alice, _ := wallet.Generate()
	tx := alice.Transfer(chainID, crypto.AddressFromSeed("rpc/system"), ownerAddr, 5, 0, 1)

	got := result(t, f.call(t, "sendTx", tx))
	if got["tx_id"] != tx.ID {
		t.Errorf("tx_id: got %v, want %s", got["tx_id"], tx.ID)
	}
	if f.mempool.Size() != 1 {
		t.Errorf("mempool size: got %d, want 1", f.mempool.Size())
	}

	resp := f.call(t, "sendTx", tx)
	if resp.Error == nil || resp.Error.Code != CodeRejected {
		t.Errorf("duplicate: got %+v, want rejected", resp.Error)
	}

	other := alice.Transfer("other-chain", crypto.AddressFromSeed("rpc/system"), ownerAddr, 5, 1, 1)
	resp = f.call(t, "sendTx", other)
	if resp.Error == nil || !strings.Contains(resp.Error.Message, "chain ID") {
		t.Errorf("cross-chain: got %+v", resp.Error)
	}
}

func TestServerAuthAndMethod(t *testing.T) {
	f := newFixture(t)
	srv := NewServer("127.0.0.1:0", f.handler, nil, "secret", zerolog.Nop())
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	body := []byte(`{"jsonrpc":"2.0","id":7,"method":"getMempoolSize"}`)
	post := func(token string) Response {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, ts.URL, bytes.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer res.Body.Close()
		var out Response
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	if resp := post(""); resp.Error == nil || resp.Error.Code != CodeUnauthorized {
		t.Errorf("no token: got %+v", resp.Error)
	}
	if resp := post("secret"); resp.Error != nil || resp.Result != float64(0) {
		t.Errorf("with token: got %+v", resp)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	req.Header.Set("Authorization", "Bearer secret")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET: got status %d", res.StatusCode)
	}
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)
	stream := NewEventStream(f.emitter, zerolog.Nop())
	srv := NewServer("127.0.0.1:0", f.handler, stream, "", zerolog.Nop())
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?types=cartridge_inserted"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for stream.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.emitter.Emit(events.Event{Type: events.EventBlockCommit, BlockHeight: 1})
	f.emitter.Emit(events.Event{
		Type:        events.EventCartridgeInserted,
		TxID:        "tx1",
		BlockHeight: 1,
		Data:        map[string]any{"machine": machineAddr.String()},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev events.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != events.EventCartridgeInserted || ev.TxID != "tx1" {
		t.Errorf("got %+v, want filtered cartridge_inserted", ev)
	}
	if ev.Data["machine"] != machineAddr.String() {
		t.Errorf("machine: got %v", ev.Data["machine"])
	}
}
