package ledger

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"secret_deal/internal/config"
	"secret_deal/internal/domain"
	"secret_deal/internal/domain/entity"
	"secret_deal/internal/domain/value"
	"secret_deal/pkg/errcodes"
)

// ABI контракта SecretDeal. Шифруется только значение (bytes32 хэндл +
// proof); title и terms идут открытым текстом — так устроена схема леджера.
const secretDealABI = `[
	{"type":"function","name":"getDeal","stateMutability":"view",
		"inputs":[{"name":"dealId","type":"uint256"}],
		"outputs":[
			{"name":"id","type":"uint256"},
			{"name":"parties","type":"address[]"},
			{"name":"createdAt","type":"uint256"},
			{"name":"offerCount","type":"uint256"},
			{"name":"finalized","type":"bool"}]},
	{"type":"function","name":"getOfferByParty","stateMutability":"view",
		"inputs":[{"name":"dealId","type":"uint256"},{"name":"party","type":"address"}],
		"outputs":[
			{"name":"partyAddress","type":"address"},
			{"name":"encryptedValue","type":"bytes32"},
			{"name":"timestamp","type":"uint256"},
			{"name":"revealed","type":"bool"},
			{"name":"title","type":"string"},
			{"name":"description","type":"string"}]},
	{"type":"function","name":"areAllOffersRevealed","stateMutability":"view",
		"inputs":[{"name":"dealId","type":"uint256"}],
		"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"submitOffer","stateMutability":"nonpayable",
		"inputs":[
			{"name":"dealId","type":"uint256"},
			{"name":"encryptedValue","type":"bytes32"},
			{"name":"inputProof","type":"bytes"},
			{"name":"title","type":"string"},
			{"name":"description","type":"string"}],
		"outputs":[]},
	{"type":"function","name":"revealOffer","stateMutability":"nonpayable",
		"inputs":[{"name":"dealId","type":"uint256"}],
		"outputs":[]},
	{"type":"function","name":"finalizeDeal","stateMutability":"nonpayable",
		"inputs":[{"name":"dealId","type":"uint256"}],
		"outputs":[]}
]`

// Client — адаптер контракта SecretDeal. Чтения идут через eth_call,
// записи подписываются ключом участника и блокируются до включения
// транзакции в блок: сразу после каждой записи следует полная
// ресинхронизация, которая обязана увидеть пост-транзакционное состояние.
type Client struct {
	backend  *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	self     value.Address
	signOpts *bind.TransactOpts
}

func New(ctx context.Context, cfg config.Ledger) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	backend, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ethclient.DialContext: %w", err)
	}

	contractAddress, err := value.ParseAddress(cfg.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("parse contract address: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(secretDealABI))
	if err != nil {
		return nil, fmt.Errorf("abi.JSON: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto.HexToECDSA: %w", err)
	}

	signOpts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("bind.NewKeyedTransactorWithChainID: %w", err)
	}

	return &Client{
		backend:  backend,
		contract: bind.NewBoundContract(contractAddress, parsedABI, backend, backend, backend),
		address:  contractAddress,
		self:     crypto.PubkeyToAddress(key.PublicKey),
		signOpts: signOpts,
	}, nil
}

// Self — адрес участника, от имени которого подписываются транзакции.
func (c *Client) Self() value.Address {
	return c.self
}

// ContractAddress — адрес контракта, к которому привязывается шифрование.
func (c *Client) ContractAddress() value.Address {
	return c.address
}

func (c *Client) Close() {
	c.backend.Close()
}

func (c *Client) GetDeal(ctx context.Context, dealID uint64) (entity.Deal, error) {
	var out []any

	callOpts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(callOpts, &out, "getDeal", new(big.Int).SetUint64(dealID)); err != nil {
		return entity.Deal{}, classify(err, "getDeal")
	}

	parties, _ := out[1].([]common.Address)
	createdAt, _ := out[2].(*big.Int)
	finalized, _ := out[4].(bool)

	deal := entity.Deal{
		ID:        dealID,
		Parties:   parties,
		Finalized: finalized,
	}

	if createdAt != nil {
		deal.CreatedAt = createdAt.Int64()
	}

	return deal, nil
}

// GetOfferByParty возвращает (оффер, true) либо (_, false), когда участник
// ещё ничего не отправил: запрос до сабмита — нормальное состояние, не ошибка.
func (c *Client) GetOfferByParty(ctx context.Context, dealID uint64, party value.Address) (entity.Offer, bool, error) {
	var out []any

	callOpts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(callOpts, &out, "getOfferByParty", new(big.Int).SetUint64(dealID), common.Address(party)); err != nil {
		return entity.Offer{}, false, classify(err, "getOfferByParty")
	}

	owner, _ := out[0].(common.Address)
	if owner == (common.Address{}) {
		return entity.Offer{}, false, nil
	}

	handle, _ := out[1].([32]byte)
	timestamp, _ := out[2].(*big.Int)
	revealed, _ := out[3].(bool)
	title, _ := out[4].(string)
	terms, _ := out[5].(string)

	offer := entity.Offer{
		Party:          owner,
		EncryptedValue: value.HexBytes(handle[:]),
		Title:          title,
		Terms:          terms,
		Revealed:       revealed,
	}

	if timestamp != nil {
		offer.SubmittedAt = timestamp.Int64()
	}

	return offer, true, nil
}

func (c *Client) AreAllOffersRevealed(ctx context.Context, dealID uint64) (bool, error) {
	var out []any

	callOpts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(callOpts, &out, "areAllOffersRevealed", new(big.Int).SetUint64(dealID)); err != nil {
		return false, classify(err, "areAllOffersRevealed")
	}

	revealed, _ := out[0].(bool)

	return revealed, nil
}

// SubmitOffer отправляет хэндл и proof ровно в том виде, в каком их выдал
// адаптер шифрования, байт-в-байт.
func (c *Client) SubmitOffer(ctx context.Context, dealID uint64, ct value.Ciphertext, title, terms string) error {
	handle, err := ct.Handle32()
	if err != nil {
		return err
	}

	return c.transact(ctx, "submitOffer",
		new(big.Int).SetUint64(dealID), handle, []byte(ct.Proof), title, terms)
}

func (c *Client) RevealOffer(ctx context.Context, dealID uint64) error {
	return c.transact(ctx, "revealOffer", new(big.Int).SetUint64(dealID))
}

func (c *Client) FinalizeDeal(ctx context.Context, dealID uint64) error {
	return c.transact(ctx, "finalizeDeal", new(big.Int).SetUint64(dealID))
}

// transact отправляет транзакцию и блокируется до её включения в блок.
// Отмена после бродкаста не поддерживается: судьба транзакции дожидается
// в любом случае.
func (c *Client) transact(ctx context.Context, method string, args ...any) error {
	opts := *c.signOpts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		return classify(err, method)
	}

	logger(ctx).Info("transaction sent",
		"method", method,
		"tx-hash", tx.Hash().Hex(),
	)

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return domain.WrapError(err, errcodes.TransactionFailed, method+": wait mined")
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.NewError(errcodes.TransactionFailed, method+": transaction reverted")
	}

	logger(ctx).Info("transaction mined",
		"method", method,
		"tx-hash", tx.Hash().Hex(),
		"block", receipt.BlockNumber.Uint64(),
	)

	return nil
}
