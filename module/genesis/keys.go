package genesis

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	blst "github.com/supranational/blst/bindings/go"
	"golang.org/x/crypto/hkdf"
)

// SeedLen is the length of every derived seed, in bytes.
const SeedLen = 32

// labels separating the key domains derived from one master seed
const (
	labelValidator  = "validator"
	labelWithdrawal = "withdrawal"
	labelAccount    = "account"
	labelJWT        = "jwt"
)

// DefaultSeed returns the master seed used when none is configured. Equal network ids yield equal
// key material.
func DefaultSeed(networkID uint64) []byte {
	sum := sha256.Sum256([]byte("localnet/" + strconv.FormatUint(networkID, 10)))
	return sum[:]
}

// DeriveSeeds derives n seeds of SeedLen bytes for the given key domain.
func DeriveSeeds(master []byte, label string, n int) ([][]byte, error) {
	if len(master) == 0 {
		return nil, fmt.Errorf("master seed is empty")
	}

	seeds := make([][]byte, n)
	for i := range seeds {
		reader := hkdf.New(sha256.New, master, nil, []byte(fmt.Sprintf("%s/%d", label, i)))
		seeds[i] = make([]byte, SeedLen)
		if _, err := io.ReadFull(reader, seeds[i]); err != nil {
			return nil, fmt.Errorf("could not derive %s seed %d: %w", label, i, err)
		}
	}
	return seeds, nil
}

// ValidatorKey is the BLS key material of one genesis validator.
type ValidatorKey struct {
	Index                 int    `yaml:"index"`
	Pubkey                string `yaml:"pubkey"`
	Secret                string `yaml:"secret"`
	WithdrawalAddress     string `yaml:"withdrawal_address"`
	WithdrawalCredentials string `yaml:"withdrawal_credentials"`
}

// AccountKey is a prefunded execution layer account.
type AccountKey struct {
	Address    string `yaml:"address"`
	PrivateKey string `yaml:"private_key"`
}

// GenerateValidatorKeys generates one BLS key per seed. Each validator withdraws to the address at the
// same index.
func GenerateValidatorKeys(n int, seeds [][]byte, withdrawal []common.Address) ([]ValidatorKey, error) {
	if n != len(seeds) {
		return nil, fmt.Errorf("n needs to match the number of seeds (%v != %v)", n, len(seeds))
	}
	if n != len(withdrawal) {
		return nil, fmt.Errorf("n needs to match the number of withdrawal addresses (%v != %v)", n, len(withdrawal))
	}

	keys := make([]ValidatorKey, n)
	for i, seed := range seeds {
		sk := blst.KeyGen(seed)
		if sk == nil {
			return nil, fmt.Errorf("could not generate validator key %d", i)
		}
		pk := new(blst.P1Affine).From(sk)

		keys[i] = ValidatorKey{
			Index:                 i,
			Pubkey:                encodeHex(pk.Compress()),
			Secret:                encodeHex(sk.Serialize()),
			WithdrawalAddress:     withdrawal[i].Hex(),
			WithdrawalCredentials: encodeHex(WithdrawalCredentials(withdrawal[i])),
		}
	}
	return keys, nil
}

// WithdrawalCredentials returns execution layer withdrawal credentials for the given address:
// the 0x01 prefix, 11 zero bytes, then the address.
func WithdrawalCredentials(address common.Address) []byte {
	creds := make([]byte, 32)
	creds[0] = 0x01
	copy(creds[12:], address.Bytes())
	return creds
}

// GenerateAccounts turns every seed into a secp256k1 account key.
func GenerateAccounts(seeds [][]byte) ([]*ecdsa.PrivateKey, error) {
	keys := make([]*ecdsa.PrivateKey, len(seeds))
	for i, seed := range seeds {
		key, err := crypto.ToECDSA(seed)
		if err != nil {
			return nil, fmt.Errorf("could not generate account key %d: %w", i, err)
		}
		keys[i] = key
	}
	return keys, nil
}

// Addresses returns the addresses of the given account keys.
func Addresses(keys []*ecdsa.PrivateKey) []common.Address {
	addrs := make([]common.Address, len(keys))
	for i, key := range keys {
		addrs[i] = crypto.PubkeyToAddress(key.PublicKey)
	}
	return addrs
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
