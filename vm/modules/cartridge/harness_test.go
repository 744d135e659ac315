package cartridge

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/internal/testutil"
	"github.com/tolelom/arcadechain/storage"
	"github.com/tolelom/arcadechain/vm"
	"github.com/tolelom/arcadechain/vm/modules/asset"
	"github.com/tolelom/arcadechain/vm/modules/economy"
)

var testIDs = Identities{
	Program:           crypto.AddressFromSeed("test/cartridge"),
	AssetProgram:      crypto.AddressFromSeed("test/asset"),
	SystemProgram:     crypto.AddressFromSeed("test/system"),
	PlatformRecipient: crypto.AddressFromSeed("test/platform"),
}

type testKey struct {
	priv crypto.PrivateKey
	addr crypto.Address
}

func newTestKey(t *testing.T) testKey {
	t.Helper()
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return testKey{priv: priv, addr: pub.Address()}
}

// harness runs instructions through a real executor over in-memory state.
type harness struct {
	t      *testing.T
	state  *storage.StateDB
	exec   *vm.Executor
	nonces map[crypto.Address]uint64
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	state := testutil.NewStateDB()
	reg := vm.NewRegistry()
	reg.Register(New(testIDs, opts...))
	reg.Register(asset.New(testIDs.AssetProgram))
	reg.Register(economy.New(testIDs.SystemProgram))
	return &harness{
		t:      t,
		state:  state,
		exec:   vm.NewExecutor(state, reg, zerolog.Nop()),
		nonces: make(map[crypto.Address]uint64),
	}
}

// send signs ix with payer plus every extra signer and executes it.
func (h *harness) send(payer testKey, extra []testKey, ixs ...core.Instruction) *core.Receipt {
	h.t.Helper()
	tx := core.NewTransaction("test", payer.addr, h.nonces[payer.addr], 0, ixs...)
	tx.Sign(payer.priv)
	for _, k := range extra {
		tx.Sign(k.priv)
	}
	out, err := h.exec.ExecuteTx(1, tx)
	if err != nil {
		h.t.Fatalf("ExecuteTx rejected tx: %v", err)
	}
	h.nonces[payer.addr]++
	return out.Receipt
}

func (h *harness) mustSucceed(r *core.Receipt) {
	h.t.Helper()
	if !r.Success {
		h.t.Fatalf("tx failed: %s", r.Error)
	}
}

func (h *harness) expectCode(r *core.Receipt, want Error) {
	h.t.Helper()
	if r.Success {
		h.t.Fatalf("tx succeeded, want %v", want)
	}
	if r.ErrorCode == nil {
		h.t.Fatalf("tx failed without code (%s), want %d %v", r.Error, want, want)
	}
	if *r.ErrorCode != uint32(want) {
		h.t.Fatalf("error code: got %d (%s) want %d (%v)", *r.ErrorCode, r.Error, want, want)
	}
}

func (h *harness) asset(addr crypto.Address) *core.Asset {
	h.t.Helper()
	a, err := h.state.GetAsset(addr)
	if err != nil {
		h.t.Fatalf("GetAsset %s: %v", addr, err)
	}
	return a
}

// world is a machine collection with one commissioned machine and a released
// game, ready for cartridges.
type world struct {
	operator   testKey
	player     testKey
	machColl   testKey
	machine    crypto.Address
	game       crypto.Address
	gameBump   uint8
	gameNonce  uint8
	gameName   string
	machineOwn testKey
}

func newWorld(h *harness) *world {
	h.t.Helper()
	w := &world{
		operator:   newTestKey(h.t),
		player:     newTestKey(h.t),
		machColl:   newTestKey(h.t),
		machineOwn: newTestKey(h.t),
		gameName:   "Zork",
	}
	h.mustSucceed(h.send(w.operator, []testKey{w.machColl},
		asset.NewCreateCollection(testIDs.AssetProgram, w.machColl.addr, w.operator.addr, w.operator.addr,
			asset.CreateCollectionArgs{Name: "Arcade Floor", URI: "https://x/floor.json"})))

	var err error
	w.machine, _, err = MachineAddress(testIDs.Program, w.machColl.addr, "ARCADE-01")
	if err != nil {
		h.t.Fatalf("MachineAddress: %v", err)
	}
	h.mustSucceed(h.send(w.operator, nil, testIDs.NewCommissionMachine(CommissionMachineAccounts{
		Machine:           w.machine,
		MachineCollection: w.machColl.addr,
		Owner:             w.machineOwn.addr,
		Payer:             w.operator.addr,
	}, CommissionMachineArgs{Name: "ARCADE-01", URI: "https://x/1.json"})))

	w.game, w.gameBump, err = GameAddress(testIDs.Program, w.gameName, w.gameNonce)
	if err != nil {
		h.t.Fatalf("GameAddress: %v", err)
	}
	h.mustSucceed(h.send(w.operator, nil, testIDs.NewReleaseGame(ReleaseGameAccounts{
		Game:  w.game,
		Payer: w.operator.addr,
	}, ReleaseGameArgs{Name: w.gameName, URI: "https://z", Nonce: w.gameNonce, Price: 2500})))
	return w
}

func (w *world) collArgs() CollectionArgs {
	return CollectionArgs{Nonce: w.gameNonce, Bump: w.gameBump}
}

// print mints a cartridge owned by the player.
func (w *world) print(h *harness) crypto.Address {
	h.t.Helper()
	cart := newTestKey(h.t)
	h.mustSucceed(h.send(w.player, []testKey{cart}, testIDs.NewPrintGameCartridge(PrintGameCartridgeAccounts{
		Cartridge: cart.addr,
		Game:      w.game,
		Owner:     w.player.addr,
		Payer:     w.player.addr,
	}, w.collArgs())))
	return cart.addr
}

func (w *world) coupling(cartridge crypto.Address) CouplingAccounts {
	return CouplingAccounts{
		Cartridge:         cartridge,
		Game:              w.game,
		CartridgeOwner:    w.player.addr,
		Machine:           w.machine,
		MachineCollection: w.machColl.addr,
		MachineOwner:      w.machineOwn.addr,
	}
}

func (w *world) insert(h *harness, cartridge crypto.Address) *core.Receipt {
	return h.send(w.player, nil, testIDs.NewInsertCartridge(w.coupling(cartridge), w.collArgs()))
}

func (w *world) remove(h *harness, cartridge crypto.Address) *core.Receipt {
	return h.send(w.player, nil, testIDs.NewRemoveCartridge(w.coupling(cartridge), w.collArgs()))
}

// assertCoupled checks the three-way link between machine and cartridge.
func (w *world) assertCoupled(h *harness, cartridge crypto.Address) {
	h.t.Helper()
	m := h.asset(w.machine)
	c := h.asset(cartridge)
	if !bytes.Equal(m.AppData.Data, cartridge.Bytes()) {
		h.t.Errorf("slot: got %x want %s", m.AppData.Data, cartridge)
	}
	if !bytes.Equal(c.LinkedData, w.machine.Bytes()) {
		h.t.Errorf("link: got %x want %s", c.LinkedData, w.machine)
	}
	if c.TransferLock == nil || !c.TransferLock.Frozen || c.TransferLock.Authority != w.machine {
		h.t.Errorf("lock: got %+v want frozen by machine %s", c.TransferLock, w.machine)
	}
}

// assertUncoupled checks the machine slot is empty and the cartridge is free.
func (w *world) assertUncoupled(h *harness, cartridge crypto.Address) {
	h.t.Helper()
	m := h.asset(w.machine)
	c := h.asset(cartridge)
	if len(m.AppData.Data) != 0 {
		h.t.Errorf("slot: got %x want empty", m.AppData.Data)
	}
	if len(c.LinkedData) != 0 {
		h.t.Errorf("link: got %x want empty", c.LinkedData)
	}
	if c.TransferLock != nil {
		h.t.Errorf("lock: got %+v want none", c.TransferLock)
	}
}
