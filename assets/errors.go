package assets

import "errors"

var (
	ErrAddressInUse       = errors.New("assets: address already in use")
	ErrMissingSignature   = errors.New("assets: missing required signature")
	ErrInvalidAuthority   = errors.New("assets: invalid authority")
	ErrInvalidRoyalties   = errors.New("assets: royalty creators must total 100 percent and basis points must not exceed 10000")
	ErrTransferLockExists = errors.New("assets: transfer lock already present")
	ErrNoTransferLock     = errors.New("assets: asset has no transfer lock")
	ErrAssetFrozen        = errors.New("assets: asset is frozen")
	ErrNoAppData          = errors.New("assets: asset has no app data")
	ErrLinkedDataDisabled = errors.New("assets: collection has no linked data")
	ErrCollectionMismatch = errors.New("assets: asset does not belong to collection")
	ErrMaxSupplyReached   = errors.New("assets: collection max supply reached")
	ErrEditionNeedsMaster = errors.New("assets: edition requires a master edition collection")
)
