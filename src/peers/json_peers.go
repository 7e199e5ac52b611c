package peers

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

const jsonPeerPath = "peers.json"

// JSONPeers reads and writes the bootstrap contact list from/to a peers.json
// file in a directory.
type JSONPeers struct {
	l    sync.Mutex
	path string
}

// NewJSONPeers creates a new JSONPeers store under the given directory.
func NewJSONPeers(base string) *JSONPeers {
	return &JSONPeers{
		path: filepath.Join(base, jsonPeerPath),
	}
}

// Contacts loads the contact list from the file.
func (j *JSONPeers) Contacts() ([]*Contact, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	var contacts []*Contact
	if err := json.Unmarshal(buf, &contacts); err != nil {
		return nil, err
	}

	for _, c := range contacts {
		if len(c.PubKeyBytes()) == 0 {
			return nil, fmt.Errorf("contact %s has an invalid public key", c.NetAddr)
		}
	}

	return contacts, nil
}

// SetContacts writes the contact list to the file.
func (j *JSONPeers) SetContacts(contacts []*Contact) error {
	j.l.Lock()
	defer j.l.Unlock()

	b, err := json.MarshalIndent(contacts, "", "	")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, b, 0600)
}
