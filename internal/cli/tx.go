package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tolelom/arcadechain/config"
	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
	"github.com/tolelom/arcadechain/rpc"
	"github.com/tolelom/arcadechain/vm/modules/asset"
	"github.com/tolelom/arcadechain/vm/modules/cartridge"
	"github.com/tolelom/arcadechain/vm/modules/economy"
	"github.com/tolelom/arcadechain/wallet"
)

// chainClient is the subset of rpc.Client the tx commands use.
type chainClient interface {
	Account(ctx context.Context, addr crypto.Address) (*core.Account, error)
	Asset(ctx context.Context, addr crypto.Address) (*core.Asset, error)
	Collection(ctx context.Context, addr crypto.Address) (*core.Collection, error)
	Receipt(ctx context.Context, txID string) (*core.Receipt, error)
	SendTx(ctx context.Context, tx *core.Transaction) (string, error)
}

// addressValue is a flag holding an optional hex address.
type addressValue struct {
	addr crypto.Address
	set  bool
}

func (v *addressValue) String() string {
	if !v.set {
		return ""
	}
	return v.addr.String()
}

func (v *addressValue) Set(s string) error {
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		return err
	}
	v.addr, v.set = addr, true
	return nil
}

func (v *addressValue) Type() string { return "address" }

// or returns the flag value, or def when unset.
func (v *addressValue) or(def crypto.Address) crypto.Address {
	if v.set {
		return v.addr
	}
	return def
}

type txOptions struct {
	root         *rootOptions
	rpcURL       string
	keyPath      string
	authorityKey string
	fee          uint64
	wait         time.Duration

	newClient func(url, token string) chainClient
}

// txEnv is everything a tx subcommand needs once flags are parsed.
type txEnv struct {
	cfg       *config.Config
	ids       cartridge.Identities
	payer     *wallet.Wallet
	authority *wallet.Wallet // nil unless --authority-key
	client    chainClient
	fee       uint64
	wait      time.Duration
	out       io.Writer
}

func newTxCommand(root *rootOptions) *cobra.Command {
	opts := &txOptions{
		root:      root,
		newClient: func(url, token string) chainClient { return rpc.NewClient(url, token) },
	}
	cmd := &cobra.Command{Use: "tx", Short: "Build, sign and submit transactions"}
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.rpcURL, "rpc", "", "node RPC URL (default http://<rpc_addr>)")
	pf.StringVar(&opts.keyPath, "key", "key.json", "payer keystore")
	pf.StringVar(&opts.authorityKey, "authority-key", "", "keystore of an authority distinct from the payer")
	pf.Uint64Var(&opts.fee, "fee", 0, "transaction fee")
	pf.DurationVar(&opts.wait, "wait", 10*time.Second, "wait this long for the receipt (0 disables)")

	cmd.AddCommand(
		newCreateCollectionCommand(opts),
		newCommissionCommand(opts),
		newReleaseCommand(opts),
		newPrintCommand(opts),
		newCouplingCommand(opts, cartridge.InsertCartridgeV1),
		newCouplingCommand(opts, cartridge.RemoveCartridgeV1),
		newTransferCommand(opts),
		newTransferAssetCommand(opts),
	)
	return cmd
}

func (o *txOptions) env(cmd *cobra.Command) (*txEnv, error) {
	cfg, err := o.root.load()
	if err != nil {
		return nil, err
	}
	ids, err := cfg.Identities()
	if err != nil {
		return nil, err
	}
	priv, err := wallet.LoadKey(o.keyPath, password())
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", o.keyPath, err)
	}
	e := &txEnv{
		cfg:   cfg,
		ids:   ids,
		payer: wallet.New(priv),
		fee:   o.fee,
		wait:  o.wait,
		out:   cmd.OutOrStdout(),
	}
	if o.authorityKey != "" {
		apriv, err := wallet.LoadKey(o.authorityKey, password())
		if err != nil {
			return nil, fmt.Errorf("load authority key %s: %w", o.authorityKey, err)
		}
		e.authority = wallet.New(apriv)
	}
	url := o.rpcURL
	if url == "" {
		url = "http://" + cfg.RPCAddr
	}
	e.client = o.newClient(url, cfg.RPCAuthToken)
	return e, nil
}

// authorityAddr returns the optional authority account for a builder.
func (e *txEnv) authorityAddr() *crypto.Address {
	if e.authority == nil {
		return nil
	}
	addr := e.authority.Address()
	return &addr
}

func (e *txEnv) cosigners(extra ...*wallet.Wallet) []*wallet.Wallet {
	if e.authority != nil {
		extra = append(extra, e.authority)
	}
	return extra
}

// ErrTxFailed is returned when a sealed transaction carries a failed receipt.
var ErrTxFailed = errors.New("transaction failed")

// submit signs ixs with the payer's current nonce, sends them and, when
// wait is set, reports the receipt.
func (e *txEnv) submit(ctx context.Context, cosigners []*wallet.Wallet, ixs ...core.Instruction) error {
	acc, err := e.client.Account(ctx, e.payer.Address())
	if err != nil {
		return fmt.Errorf("payer account: %w", err)
	}
	tx := e.payer.NewTx(e.cfg.Genesis.ChainID, acc.Nonce, e.fee, cosigners, ixs...)
	id, err := e.client.SendTx(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "tx: %s\n", id)
	if e.wait <= 0 {
		return nil
	}
	rc, err := waitReceipt(ctx, e.client, id, e.wait)
	if err != nil {
		return err
	}
	if !rc.Success {
		code := "none"
		if rc.ErrorCode != nil {
			code = fmt.Sprint(*rc.ErrorCode)
		}
		return fmt.Errorf("%w in block %d: code %s: %s", ErrTxFailed, rc.BlockHeight, code, rc.Error)
	}
	fmt.Fprintf(e.out, "sealed in block %d\n", rc.BlockHeight)
	return nil
}

const receiptPoll = 200 * time.Millisecond

func waitReceipt(ctx context.Context, c chainClient, id string, timeout time.Duration) (*core.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(receiptPoll)
	defer ticker.Stop()
	for {
		rc, err := c.Receipt(ctx, id)
		if err == nil {
			return rc, nil
		}
		var rpcErr *rpc.Error
		if !errors.As(err, &rpcErr) || rpcErr.Code != rpc.CodeNotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

func newCreateCollectionCommand(opts *txOptions) *cobra.Command {
	var name, uri string
	var ua addressValue
	cmd := &cobra.Command{
		Use:   "create-collection",
		Short: "Create a plain collection, e.g. to hold machines",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env(cmd)
			if err != nil {
				return err
			}
			coll, err := wallet.Generate()
			if err != nil {
				return err
			}
			ix := asset.NewCreateCollection(e.ids.AssetProgram, coll.Address(), ua.or(e.payer.Address()), e.payer.Address(),
				asset.CreateCollectionArgs{Name: name, URI: uri})
			fmt.Fprintf(e.out, "collection: %s\n", coll.Address())
			return e.submit(cmd.Context(), []*wallet.Wallet{coll}, ix)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "collection name")
	cmd.Flags().StringVar(&uri, "uri", "", "collection metadata URI")
	cmd.Flags().Var(&ua, "update-authority", "update authority (default payer)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCommissionCommand(opts *txOptions) *cobra.Command {
	var name, uri string
	var coll, owner addressValue
	cmd := &cobra.Command{
		Use:   "commission",
		Short: "Commission a machine inside a machine collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env(cmd)
			if err != nil {
				return err
			}
			machine, _, err := cartridge.MachineAddress(e.ids.Program, coll.addr, name)
			if err != nil {
				return err
			}
			ix := e.ids.NewCommissionMachine(cartridge.CommissionMachineAccounts{
				Machine:           machine,
				MachineCollection: coll.addr,
				Owner:             owner.or(e.payer.Address()),
				Payer:             e.payer.Address(),
				Authority:         e.authorityAddr(),
			}, cartridge.CommissionMachineArgs{Name: name, URI: uri})
			fmt.Fprintf(e.out, "machine: %s\n", machine)
			return e.submit(cmd.Context(), e.cosigners(), ix)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "machine name")
	cmd.Flags().StringVar(&uri, "uri", "", "machine metadata URI")
	cmd.Flags().Var(&coll, "collection", "machine collection address")
	cmd.Flags().Var(&owner, "owner", "machine owner (default payer)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func newReleaseCommand(opts *txOptions) *cobra.Command {
	var name, uri string
	var nonce uint8
	var price uint64
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Release a game collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env(cmd)
			if err != nil {
				return err
			}
			game, _, err := cartridge.GameAddress(e.ids.Program, name, nonce)
			if err != nil {
				return err
			}
			ix := e.ids.NewReleaseGame(cartridge.ReleaseGameAccounts{
				Game:      game,
				Payer:     e.payer.Address(),
				Authority: e.authorityAddr(),
			}, cartridge.ReleaseGameArgs{Name: name, URI: uri, Nonce: nonce, Price: price})
			fmt.Fprintf(e.out, "game: %s\n", game)
			return e.submit(cmd.Context(), e.cosigners(), ix)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "game name")
	cmd.Flags().StringVar(&uri, "uri", "", "game metadata URI")
	cmd.Flags().Uint8Var(&nonce, "nonce", 0, "game nonce")
	cmd.Flags().Uint64Var(&price, "price", 0, "cartridge price")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newPrintCommand(opts *txOptions) *cobra.Command {
	var gameName string
	var nonce uint8
	var owner addressValue
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Print a cartridge of a released game",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env(cmd)
			if err != nil {
				return err
			}
			game, bump, err := cartridge.GameAddress(e.ids.Program, gameName, nonce)
			if err != nil {
				return err
			}
			cart, err := wallet.Generate()
			if err != nil {
				return err
			}
			ix := e.ids.NewPrintGameCartridge(cartridge.PrintGameCartridgeAccounts{
				Cartridge: cart.Address(),
				Game:      game,
				Owner:     owner.or(e.payer.Address()),
				Payer:     e.payer.Address(),
				Authority: e.authorityAddr(),
			}, cartridge.CollectionArgs{Nonce: nonce, Bump: bump})
			fmt.Fprintf(e.out, "cartridge: %s\n", cart.Address())
			return e.submit(cmd.Context(), e.cosigners(cart), ix)
		},
	}
	cmd.Flags().StringVar(&gameName, "game", "", "game name")
	cmd.Flags().Uint8Var(&nonce, "game-nonce", 0, "game nonce")
	cmd.Flags().Var(&owner, "owner", "cartridge owner (default payer)")
	_ = cmd.MarkFlagRequired("game")
	return cmd
}

// resolveCoupling reads the cartridge and machine to fill the coupling
// account list. The cartridge's collection must derive from gameNonce.
func resolveCoupling(ctx context.Context, c chainClient, ids cartridge.Identities, cart, machine, owner crypto.Address, gameNonce uint8) (cartridge.CouplingAccounts, cartridge.CollectionArgs, error) {
	var accs cartridge.CouplingAccounts
	var args cartridge.CollectionArgs

	ca, err := c.Asset(ctx, cart)
	if err != nil {
		return accs, args, fmt.Errorf("cartridge: %w", err)
	}
	if ca.Collection == nil {
		return accs, args, fmt.Errorf("cartridge %s belongs to no game", cart)
	}
	game, err := c.Collection(ctx, *ca.Collection)
	if err != nil {
		return accs, args, fmt.Errorf("game: %w", err)
	}
	derived, bump, err := cartridge.GameAddress(ids.Program, game.Name, gameNonce)
	if err != nil {
		return accs, args, err
	}
	if derived != game.Address {
		return accs, args, fmt.Errorf("game %q with nonce %d derives %s, cartridge belongs to %s", game.Name, gameNonce, derived, game.Address)
	}

	ma, err := c.Asset(ctx, machine)
	if err != nil {
		return accs, args, fmt.Errorf("machine: %w", err)
	}
	if ma.Collection == nil {
		return accs, args, fmt.Errorf("machine %s belongs to no collection", machine)
	}

	accs = cartridge.CouplingAccounts{
		Cartridge:         cart,
		Game:              game.Address,
		CartridgeOwner:    owner,
		Machine:           machine,
		MachineCollection: *ma.Collection,
		MachineOwner:      ma.Owner,
	}
	return accs, cartridge.CollectionArgs{Nonce: gameNonce, Bump: bump}, nil
}

func newCouplingCommand(opts *txOptions, ix cartridge.Instruction) *cobra.Command {
	var cart, machine addressValue
	var nonce uint8
	use := "insert"
	if ix == cartridge.RemoveCartridgeV1 {
		use = "remove"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: ix.String() + " (the payer must own the cartridge)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env(cmd)
			if err != nil {
				return err
			}
			accs, cargs, err := resolveCoupling(cmd.Context(), e.client, e.ids, cart.addr, machine.addr, e.payer.Address(), nonce)
			if err != nil {
				return err
			}
			build := e.ids.NewInsertCartridge
			if ix == cartridge.RemoveCartridgeV1 {
				build = e.ids.NewRemoveCartridge
			}
			return e.submit(cmd.Context(), nil, build(accs, cargs))
		},
	}
	cmd.Flags().Var(&cart, "cartridge", "cartridge address")
	cmd.Flags().Var(&machine, "machine", "machine address")
	cmd.Flags().Uint8Var(&nonce, "game-nonce", 0, "nonce the cartridge's game was released with")
	_ = cmd.MarkFlagRequired("cartridge")
	_ = cmd.MarkFlagRequired("machine")
	return cmd
}

func newTransferCommand(opts *txOptions) *cobra.Command {
	var to addressValue
	var amount uint64
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer native balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env(cmd)
			if err != nil {
				return err
			}
			return e.submit(cmd.Context(), nil, economy.NewTransfer(e.ids.SystemProgram, e.payer.Address(), to.addr, amount))
		},
	}
	cmd.Flags().Var(&to, "to", "recipient")
	cmd.Flags().Uint64Var(&amount, "amount", 0, "amount")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newTransferAssetCommand(opts *txOptions) *cobra.Command {
	var target, to addressValue
	cmd := &cobra.Command{
		Use:   "transfer-asset",
		Short: "Transfer ownership of an asset (fails while it is inserted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.env(cmd)
			if err != nil {
				return err
			}
			a, err := e.client.Asset(cmd.Context(), target.addr)
			if err != nil {
				return err
			}
			ix := asset.NewTransfer(e.ids.AssetProgram, target.addr, a.Collection, e.payer.Address(), to.addr)
			return e.submit(cmd.Context(), nil, ix)
		},
	}
	cmd.Flags().Var(&target, "asset", "asset address")
	cmd.Flags().Var(&to, "to", "new owner")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
