package keys

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/overnet/overnet/src/crypto"
)

func TestSignVerify(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	digest := crypto.SHA256([]byte("the quick brown fox"))

	sig, err := SignEncoded(key, digest)
	if err != nil {
		t.Fatal(err)
	}

	if !VerifyEncoded(&key.PublicKey, digest, sig) {
		t.Fatal("signature should verify")
	}

	otherDigest := crypto.SHA256([]byte("jumped over"))
	if VerifyEncoded(&key.PublicKey, otherDigest, sig) {
		t.Fatal("signature should not verify against other data")
	}

	otherKey, _ := GenerateECDSAKey()
	if VerifyEncoded(&otherKey.PublicKey, digest, sig) {
		t.Fatal("signature should not verify against other key")
	}

	if VerifyEncoded(&key.PublicKey, digest, "not|a-signature") {
		t.Fatal("malformed signature should not verify")
	}
}

func TestPublicKeyHexRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	hexKey := PublicKeyHex(&key.PublicKey)

	parsed := ParsePublicKeyHex(hexKey)
	if parsed == nil {
		t.Fatal("could not parse public key hex")
	}

	if !reflect.DeepEqual(FromPublicKey(parsed), FromPublicKey(&key.PublicKey)) {
		t.Fatal("public key round trip mismatch")
	}
}

func TestPublicKeyName(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	pubBytes := FromPublicKey(&key.PublicKey)

	name := PublicKeyName(pubBytes)
	if name.IsZero() {
		t.Fatal("derived name should not be zero")
	}

	// Deterministic
	if name != PublicKeyName(pubBytes) {
		t.Fatal("name derivation should be deterministic")
	}
}

func TestSimpleKeyfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "keys")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	keyfile := filepath.Join(dir, "priv_key")

	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	simpleKeyfile := NewSimpleKeyfile(keyfile)

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatal(err)
	}

	readKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatal(err)
	}

	if key.D.Cmp(readKey.D) != 0 {
		t.Fatal("key read from file differs from key written")
	}
}
