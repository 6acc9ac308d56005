package dist

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// SignatureSuffix is appended to an archive path for its detached signature.
const SignatureSuffix = ".asc"

var ErrNoPrivateKey = errors.New("no private key in key file")

// LoadKeyRing reads an armored public (or private) key ring.
func LoadKeyRing(keyPath string) (openpgp.EntityList, error) {
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil {
		return nil, fmt.Errorf("reading key ring %s: %w", keyPath, err)
	}
	return keyring, nil
}

// LoadSigningKey returns the first entity in keyPath that carries a private
// key, decrypting it with passphrase when it is protected.
func LoadSigningKey(keyPath string, passphrase []byte) (*openpgp.Entity, error) {
	keyring, err := LoadKeyRing(keyPath)
	if err != nil {
		return nil, err
	}

	for _, entity := range keyring {
		if entity.PrivateKey == nil {
			continue
		}
		if entity.PrivateKey.Encrypted {
			if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
				return nil, fmt.Errorf("decrypting private key: %w", err)
			}
		}
		for _, sub := range entity.Subkeys {
			if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
				if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
					return nil, fmt.Errorf("decrypting subkey: %w", err)
				}
			}
		}
		return entity, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoPrivateKey, keyPath)
}

// SignFile writes an armored detached signature of filePath to
// filePath+".asc" and returns the signature path.
func SignFile(filePath string, signer *openpgp.Entity) (string, error) {
	in, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer in.Close()

	sigPath := filePath + SignatureSuffix
	out, err := os.OpenFile(sigPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return "", err
	}

	if err := openpgp.ArmoredDetachSign(out, signer, in, nil); err != nil {
		out.Close()
		os.Remove(sigPath)
		return "", fmt.Errorf("signing %s: %w", filePath, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return sigPath, nil
}

// CheckSignature verifies filePath against filePath+".asc" and returns the
// primary identity of the signer.
func CheckSignature(filePath string, keyring openpgp.KeyRing) (string, error) {
	signed, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer signed.Close()

	sig, err := os.Open(filePath + SignatureSuffix)
	if err != nil {
		return "", err
	}
	defer sig.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, signed, sig, nil)
	if err != nil {
		return "", fmt.Errorf("checking signature: %w", err)
	}
	return identityOf(signer), nil
}

func identityOf(entity *openpgp.Entity) string {
	if entity == nil {
		return ""
	}
	names := make([]string, 0, len(entity.Identities))
	for name := range entity.Identities {
		names = append(names, name)
	}
	if len(names) == 0 {
		return fmt.Sprintf("%X", entity.PrimaryKey.KeyId)
	}
	sort.Strings(names)
	return names[0]
}
