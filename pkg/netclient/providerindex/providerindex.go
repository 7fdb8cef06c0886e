// Package providerindex is an in-memory index of which network holders
// claim to store a given chunk address, used for --show-holders
// reporting: the mock network client answers NetworkClient.Holders from
// it. The verifier and downloads do not consult it. It is a
// substantially trimmed adaptation of a Kademlia-style DHT: the
// lookup-key derivation and signed-record shape survive, but the
// routing-table/iterative-lookup machinery needed for actual peer-mesh
// membership does not, since a client talking to one external storage
// network has no mesh to route through.
package providerindex

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/codec/cborcanon"
	"lukechampine.com/blake3"
)

// HolderRecord is a signed claim by a network holder that it stores the
// chunk at Address, reachable at Addr.
type HolderRecord struct {
	Address chunk.Address `cbor:"-"`
	Holder  string        `cbor:"holder"`
	Addr    string        `cbor:"addr"`
	Expire  int64         `cbor:"expire"`
	Sig     []byte        `cbor:"sig"`
}

type signable struct {
	Address []byte `cbor:"address"`
	Holder  string `cbor:"holder"`
	Addr    string `cbor:"addr"`
	Expire  int64  `cbor:"expire"`
}

// NewHolderRecord builds and signs a HolderRecord.
func NewHolderRecord(addr chunk.Address, holder, netAddr string, ttl time.Duration, privateKey ed25519.PrivateKey) (*HolderRecord, error) {
	rec := &HolderRecord{
		Address: addr,
		Holder:  holder,
		Addr:    netAddr,
		Expire:  time.Now().Add(ttl).UnixMilli(),
	}
	if err := rec.sign(privateKey); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *HolderRecord) sign(privateKey ed25519.PrivateKey) error {
	canonical, err := cborcanon.Marshal(&signable{Address: r.Address[:], Holder: r.Holder, Addr: r.Addr, Expire: r.Expire})
	if err != nil {
		return fmt.Errorf("providerindex: canonicalize record: %w", err)
	}
	r.Sig = ed25519.Sign(privateKey, canonical)
	return nil
}

// Verify checks the record's signature.
func (r *HolderRecord) Verify(publicKey ed25519.PublicKey) error {
	canonical, err := cborcanon.Marshal(&signable{Address: r.Address[:], Holder: r.Holder, Addr: r.Addr, Expire: r.Expire})
	if err != nil {
		return fmt.Errorf("providerindex: canonicalize record: %w", err)
	}
	if !ed25519.Verify(publicKey, canonical, r.Sig) {
		return fmt.Errorf("providerindex: invalid signature")
	}
	return nil
}

// IsExpired reports whether the record's TTL has elapsed.
func (r *HolderRecord) IsExpired() bool {
	return time.Now().UnixMilli() > r.Expire
}

// wireRecord is HolderRecord's on-the-wire shape: unlike the signable
// struct, it carries Sig too, so a decoded record can still be
// verified by its recipient.
type wireRecord struct {
	Address []byte `cbor:"address"`
	Holder  string `cbor:"holder"`
	Addr    string `cbor:"addr"`
	Expire  int64  `cbor:"expire"`
	Sig     []byte `cbor:"sig"`
}

// Marshal encodes the record, address included, as canonical CBOR for
// transport.
func (r *HolderRecord) Marshal() ([]byte, error) {
	data, err := cborcanon.Marshal(&wireRecord{
		Address: r.Address[:], Holder: r.Holder, Addr: r.Addr, Expire: r.Expire, Sig: r.Sig,
	})
	if err != nil {
		return nil, fmt.Errorf("providerindex: marshal record: %w", err)
	}
	return data, nil
}

// UnmarshalHolderRecord decodes a record previously written by Marshal.
func UnmarshalHolderRecord(data []byte) (*HolderRecord, error) {
	var wr wireRecord
	if err := cborcanon.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("providerindex: unmarshal record: %w", err)
	}
	if len(wr.Address) != chunk.AddressSize {
		return nil, fmt.Errorf("providerindex: malformed record address (%d bytes)", len(wr.Address))
	}
	rec := &HolderRecord{Holder: wr.Holder, Addr: wr.Addr, Expire: wr.Expire, Sig: wr.Sig}
	copy(rec.Address[:], wr.Address)
	return rec, nil
}

// lookupKey derives the index key for an address, as BLAKE3("holder" |
// address).
func lookupKey(addr chunk.Address) [32]byte {
	buf := append([]byte("holder"), addr[:]...)
	return blake3.Sum256(buf)
}

// Index is an in-memory, in-process holder index. A real deployment
// would back this with the storage network's own discovery RPC; tests
// and the mock network client use it directly.
type Index struct {
	mu      sync.RWMutex
	records map[[32]byte][]*HolderRecord
}

// New returns an empty Index.
func New() *Index {
	return &Index{records: make(map[[32]byte][]*HolderRecord)}
}

// Announce registers rec as a holder of its address.
func (idx *Index) Announce(rec *HolderRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	key := lookupKey(rec.Address)
	idx.records[key] = append(idx.records[key], rec)
}

// Holders returns the non-expired holder records for addr.
func (idx *Index) Holders(addr chunk.Address) []*HolderRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	key := lookupKey(addr)
	var out []*HolderRecord
	for _, rec := range idx.records[key] {
		if !rec.IsExpired() {
			out = append(out, rec)
		}
	}
	return out
}

// HasHolder reports whether any non-expired record claims addr.
func (idx *Index) HasHolder(addr chunk.Address) bool {
	return len(idx.Holders(addr)) > 0
}
