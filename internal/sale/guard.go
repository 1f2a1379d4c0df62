package sale

import "github.com/gagliardetto/solana-go"

// Authorization checks run before any argument is looked at.

func requireSigner(signer solana.PublicKey) error {
	if signer.IsZero() {
		return ErrUnauthorized
	}
	return nil
}

func requireConfig(st *State) (*Config, error) {
	if st.Config == nil {
		return nil, ErrNotInitialized.Wrapf("config")
	}
	return st.Config, nil
}

func requireCurve(st *State) (*BondingCurve, error) {
	if st.Curve == nil {
		return nil, ErrNotInitialized.Wrapf("bonding curve")
	}
	return st.Curve, nil
}

func requireAdmin(st *State, signer solana.PublicKey) (*Config, error) {
	if err := requireSigner(signer); err != nil {
		return nil, err
	}
	cfg, err := requireConfig(st)
	if err != nil {
		return nil, err
	}
	if !cfg.Admin.Equals(signer) {
		return nil, ErrAdminOnly
	}
	return cfg, nil
}

// requirePendingAdmin authorizes the second phase of an admin handover.
func requirePendingAdmin(st *State, signer solana.PublicKey) (*Config, error) {
	if err := requireSigner(signer); err != nil {
		return nil, err
	}
	cfg, err := requireConfig(st)
	if err != nil {
		return nil, err
	}
	if cfg.PendingAdmin == nil || !cfg.PendingAdmin.Equals(signer) {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}
