package client

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/yozoon/internal/blockchain"
	"github.com/rovshanmuradov/yozoon/internal/curve"
	"github.com/rovshanmuradov/yozoon/internal/dex/yozoon"
	"github.com/rovshanmuradov/yozoon/internal/sale"
	"github.com/rovshanmuradov/yozoon/internal/wallet"
)

// MockClient реализует интерфейс blockchain.Client
type MockClient struct {
	mock.Mock
}

var _ blockchain.Client = (*MockClient)(nil)

func (m *MockClient) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	args := m.Called(ctx)
	return args.Get(0).(solana.Hash), args.Error(1)
}

func (m *MockClient) GetAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	args := m.Called(ctx, pubkey)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockClient) GetMultipleAccountsData(ctx context.Context, pubkeys []solana.PublicKey) ([][]byte, error) {
	args := m.Called(ctx, pubkeys)
	data, _ := args.Get(0).([][]byte)
	return data, args.Error(1)
}

func (m *MockClient) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	args := m.Called(ctx, tx, opts)
	return args.Get(0).(solana.Signature), args.Error(1)
}

func (m *MockClient) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	args := m.Called(ctx, tx)
	res, _ := args.Get(0).(*blockchain.SimulationResult)
	return res, args.Error(1)
}

func (m *MockClient) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	args := m.Called(ctx, pubkey, commitment)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockClient) WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, commitment rpc.CommitmentType) error {
	args := m.Called(ctx, signature, commitment)
	return args.Error(0)
}

func (m *MockClient) GetTransactionLogs(ctx context.Context, signature solana.Signature) ([]string, error) {
	args := m.Called(ctx, signature)
	logs, _ := args.Get(0).([]string)
	return logs, args.Error(1)
}

var testSignature = solana.Signature{7, 7, 7}

// chain is an in-memory picture of the deployed accounts served through
// MockClient.
type chain struct {
	t      *testing.T
	rpc    *MockClient
	wallet *wallet.Wallet
	client *Client
	addrs  yozoon.Addresses

	config *yozoon.ConfigAccount
	curve  *yozoon.BondingCurveAccount
}

func testPricePoints() []curve.PricePoint {
	return []curve.PricePoint{
		{Supply: 0, PricePerToken: 1_000_000},
		{Supply: 1_000_000 * curve.Precision, PricePerToken: 2_000_000},
	}
}

func newChain(t *testing.T, params sale.Params) *chain {
	t.Helper()
	w, err := wallet.NewWallet(solana.NewWallet().PrivateKey.String())
	require.NoError(t, err)

	m := new(MockClient)
	ch := &chain{
		t:      t,
		rpc:    m,
		wallet: w,
		client: New(m, w, yozoon.ProgramID, params, zaptest.NewLogger(t)),
		addrs:  yozoon.NewAddresses(yozoon.ProgramID),
		config: &yozoon.ConfigAccount{
			Admin:              w.PublicKey,
			TokenMint:          solana.NewWallet().PublicKey(),
			Treasury:           solana.NewWallet().PublicKey(),
			DefaultReferralFee: sale.DefaultReferralFeeBps,
		},
		curve: &yozoon.BondingCurveAccount{PricePoints: testPricePoints()},
	}
	return ch
}

func (ch *chain) encode(acc interface{ Encode() ([]byte, error) }) []byte {
	data, err := acc.Encode()
	require.NoError(ch.t, err)
	return data
}

// expectState serves the config and curve accounts; nil fields are served
// as missing accounts.
func (ch *chain) expectState() {
	cfgAddr, _, err := ch.addrs.Config()
	require.NoError(ch.t, err)
	curveAddr, _, err := ch.addrs.BondingCurve()
	require.NoError(ch.t, err)

	data := make([][]byte, 2)
	if ch.config != nil {
		data[0] = ch.encode(ch.config)
	}
	if ch.curve != nil {
		data[1] = ch.encode(ch.curve)
	}
	ch.rpc.On("GetMultipleAccountsData", mock.Anything, []solana.PublicKey{cfgAddr, curveAddr}).Return(data, nil)
}

// expectOwners serves the referral and airdrop records of owners, in the
// order FetchState asks for them.
func (ch *chain) expectOwners(owners []solana.PublicKey, referrals []*yozoon.ReferralAccount, airdrops []*yozoon.AirdropAccount) {
	refAddrs := make([]solana.PublicKey, len(owners))
	dropAddrs := make([]solana.PublicKey, len(owners))
	refData := make([][]byte, len(owners))
	dropData := make([][]byte, len(owners))
	for i, owner := range owners {
		var err error
		refAddrs[i], _, err = ch.addrs.Referral(owner)
		require.NoError(ch.t, err)
		dropAddrs[i], _, err = ch.addrs.Airdrop(owner)
		require.NoError(ch.t, err)
		if i < len(referrals) && referrals[i] != nil {
			refData[i] = ch.encode(referrals[i])
		}
		if i < len(airdrops) && airdrops[i] != nil {
			dropData[i] = ch.encode(airdrops[i])
		}
	}
	ch.rpc.On("GetMultipleAccountsData", mock.Anything, refAddrs).Return(refData, nil)
	ch.rpc.On("GetMultipleAccountsData", mock.Anything, dropAddrs).Return(dropData, nil)
}

// expectSend accepts one transaction and returns a getter for it. logs are
// served as the landed transaction's logs.
func (ch *chain) expectSend(logs []string) func() *solana.Transaction {
	var sent *solana.Transaction
	ch.rpc.On("GetRecentBlockhash", mock.Anything).Return(solana.Hash{1}, nil)
	ch.rpc.On("SimulateTransaction", mock.Anything, mock.Anything).Return(&blockchain.SimulationResult{}, nil)
	ch.rpc.On("SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*solana.Transaction) }).
		Return(testSignature, nil).Once()
	ch.rpc.On("WaitForTransactionConfirmation", mock.Anything, testSignature, rpc.CommitmentConfirmed).Return(nil)
	ch.rpc.On("GetTransactionLogs", mock.Anything, testSignature).Return(logs, nil)
	return func() *solana.Transaction { return sent }
}

func (ch *chain) assertNothingSent() {
	ch.rpc.AssertNotCalled(ch.t, "SendTransactionWithOpts", mock.Anything, mock.Anything, mock.Anything)
}

type sentInstruction struct {
	Program  solana.PublicKey
	Accounts []solana.PublicKey
	Data     []byte
}

func decodeInstructions(t *testing.T, tx *solana.Transaction) []sentInstruction {
	t.Helper()
	require.NotNil(t, tx)
	keys := tx.Message.AccountKeys
	out := make([]sentInstruction, 0, len(tx.Message.Instructions))
	for _, ci := range tx.Message.Instructions {
		ix := sentInstruction{Program: keys[ci.ProgramIDIndex], Data: ci.Data}
		for _, idx := range ci.Accounts {
			ix.Accounts = append(ix.Accounts, keys[idx])
		}
		out = append(out, ix)
	}
	return out
}

// programLogs wraps data lines in an invocation of the program.
func programLogs(lines ...string) []string {
	self := yozoon.ProgramID.String()
	out := []string{"Program " + self + " invoke [1]"}
	out = append(out, lines...)
	return append(out, "Program "+self+" success")
}

func customError(code int) map[string]interface{} {
	return map[string]interface{}{
		"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(code)}},
	}
}
