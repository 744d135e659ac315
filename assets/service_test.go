package assets_test

import (
	"errors"
	"testing"

	"github.com/tolelom/arcadechain/assets"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/internal/testutil"
)

var (
	payer   = crypto.AddressFromSeed("assets/payer")
	ua      = crypto.AddressFromSeed("assets/ua")
	owner   = crypto.AddressFromSeed("assets/owner")
	keeper  = crypto.AddressFromSeed("assets/keeper")
	coll    = crypto.AddressFromSeed("assets/coll")
	item    = crypto.AddressFromSeed("assets/item")
	elsewho = crypto.AddressFromSeed("assets/elsewho")
)

func sig(addrs ...crypto.Address) assets.Signers {
	return assets.Signers{}.With(addrs...)
}

// newService returns a service holding a linked-data collection and one
// member asset owned by owner.
func newService(t *testing.T) *assets.Service {
	t.Helper()
	svc := assets.New(testutil.NewStateDB())
	_, err := svc.CreateCollection(sig(coll, payer), assets.CreateCollectionArgs{
		Collection:      coll,
		UpdateAuthority: ua,
		Payer:           payer,
		Name:            "Zork",
		MasterEdition:   &core.MasterEdition{},
		LinkedData:      true,
	})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	_, err = svc.CreateAsset(sig(item, payer, ua), assets.CreateAssetArgs{
		Asset:            item,
		Collection:       &coll,
		Owner:            owner,
		Payer:            payer,
		Authority:        ua,
		Name:             "Zork 1",
		Edition:          &core.Edition{Number: 1},
		AppDataAuthority: &keeper,
	})
	if err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	return svc
}

func TestCreateAssetCountsMembers(t *testing.T) {
	svc := newService(t)
	sum, err := svc.CollectionSummary(coll)
	if err != nil {
		t.Fatal(err)
	}
	if sum.NumMinted != 1 || sum.Name != "Zork" {
		t.Errorf("summary: %+v", sum)
	}
	a, _ := svc.GetAsset(item)
	if a.Owner != owner || a.Collection == nil || *a.Collection != coll {
		t.Errorf("asset: %+v", a)
	}
	if data, err := svc.AppData(item); err != nil || len(data) != 0 {
		t.Errorf("fresh app data: got (%x, %v)", data, err)
	}
}

func TestCreateFailures(t *testing.T) {
	svc := newService(t)
	other := crypto.AddressFromSeed("assets/other")
	tests := []struct {
		name    string
		signers assets.Signers
		args    assets.CreateAssetArgs
		want    error
	}{
		{"asset unsigned", sig(payer), assets.CreateAssetArgs{Asset: other, Payer: payer}, assets.ErrMissingSignature},
		{"address reused", sig(item, payer), assets.CreateAssetArgs{Asset: item, Payer: payer}, assets.ErrAddressInUse},
		{"collection address reused", sig(coll, payer), assets.CreateAssetArgs{Asset: coll, Payer: payer}, assets.ErrAddressInUse},
		{"wrong authority", sig(other, payer), assets.CreateAssetArgs{Asset: other, Payer: payer, Collection: &coll}, assets.ErrInvalidAuthority},
		{"authority unsigned", sig(other, payer), assets.CreateAssetArgs{Asset: other, Payer: payer, Collection: &coll, Authority: ua}, assets.ErrMissingSignature},
		{"edition without collection", sig(other, payer), assets.CreateAssetArgs{Asset: other, Payer: payer, Edition: &core.Edition{Number: 1}}, assets.ErrEditionNeedsMaster},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateAsset(tt.signers, tt.args); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	_, err := svc.CreateCollection(sig(other, payer), assets.CreateCollectionArgs{
		Collection: other,
		Payer:      payer,
		Royalties:  &core.Royalties{BasisPoints: 500, Creators: []core.Creator{{Address: ua, Percentage: 90}}},
	})
	if !errors.Is(err, assets.ErrInvalidRoyalties) {
		t.Errorf("royalties not totalling 100: got %v", err)
	}
}

func TestTransferLockLifecycle(t *testing.T) {
	svc := newService(t)

	if err := svc.AddTransferLock(sig(elsewho), item, core.TransferLock{Frozen: true, Authority: keeper}); !errors.Is(err, assets.ErrMissingSignature) {
		t.Fatalf("lock by non-owner: got %v", err)
	}
	if err := svc.AddTransferLock(sig(owner), item, core.TransferLock{Frozen: true, Authority: keeper}); err != nil {
		t.Fatal(err)
	}
	if err := svc.AddTransferLock(sig(owner), item, core.TransferLock{}); !errors.Is(err, assets.ErrTransferLockExists) {
		t.Errorf("second lock: got %v", err)
	}
	if err := svc.Transfer(sig(owner), item, &coll, elsewho); !errors.Is(err, assets.ErrAssetFrozen) {
		t.Errorf("transfer while frozen: got %v", err)
	}
	if err := svc.RemoveTransferLock(sig(owner), item); !errors.Is(err, assets.ErrAssetFrozen) {
		t.Errorf("remove while frozen: got %v", err)
	}
	if err := svc.SetFrozen(sig(owner), item, false); !errors.Is(err, assets.ErrMissingSignature) {
		t.Errorf("thaw by owner: got %v", err)
	}
	if err := svc.SetFrozen(sig(keeper), item, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.RemoveTransferLock(sig(owner), item); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetFrozen(sig(keeper), item, true); !errors.Is(err, assets.ErrNoTransferLock) {
		t.Errorf("freeze without lock: got %v", err)
	}

	if err := svc.Transfer(sig(owner), item, nil, elsewho); !errors.Is(err, assets.ErrCollectionMismatch) {
		t.Errorf("transfer naming no collection: got %v", err)
	}
	if err := svc.Transfer(sig(owner), item, &coll, elsewho); err != nil {
		t.Fatal(err)
	}
	if a, _ := svc.GetAsset(item); a.Owner != elsewho {
		t.Errorf("owner: got %s", a.Owner)
	}
}

func TestLinkedMetadata(t *testing.T) {
	svc := newService(t)
	blob := []byte{1, 2, 3}

	if err := svc.WriteAppData(sig(ua), item, ua, blob); !errors.Is(err, assets.ErrInvalidAuthority) {
		t.Errorf("app data by wrong authority: got %v", err)
	}
	if err := svc.WriteAppData(sig(), item, keeper, blob); !errors.Is(err, assets.ErrMissingSignature) {
		t.Errorf("app data unsigned: got %v", err)
	}
	if err := svc.WriteAppData(sig(keeper), item, keeper, blob); err != nil {
		t.Fatal(err)
	}
	blob[0] = 9 // the stored copy must not alias the caller's slice
	if data, _ := svc.AppData(item); len(data) != 3 || data[0] != 1 {
		t.Errorf("app data: got %x", data)
	}

	if err := svc.WriteLinkedData(sig(keeper), item, keeper, blob); !errors.Is(err, assets.ErrInvalidAuthority) {
		t.Errorf("linked data by non-UA: got %v", err)
	}
	if err := svc.WriteLinkedData(sig(ua), item, ua, blob); err != nil {
		t.Fatal(err)
	}
	if data, _ := svc.LinkedData(item); len(data) != 3 {
		t.Errorf("linked data: got %x", data)
	}

	if err := svc.WriteCollectionData(sig(ua), coll, ua, []byte("price")); err != nil {
		t.Fatal(err)
	}
	if data, _ := svc.CollectionData(coll); string(data) != "price" {
		t.Errorf("collection data: got %q", data)
	}
}

func TestLinkedDataDisabled(t *testing.T) {
	svc := assets.New(testutil.NewStateDB())
	plain := crypto.AddressFromSeed("assets/plain")
	if _, err := svc.CreateCollection(sig(plain, payer), assets.CreateCollectionArgs{Collection: plain, Payer: payer}); err != nil {
		t.Fatal(err)
	}
	if err := svc.WriteCollectionData(sig(payer), plain, payer, []byte{1}); !errors.Is(err, assets.ErrLinkedDataDisabled) {
		t.Errorf("got %v, want ErrLinkedDataDisabled", err)
	}
	if _, err := svc.AppData(plain); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("app data of a collection address: got %v", err)
	}
}
