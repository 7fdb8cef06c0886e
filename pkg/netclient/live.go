package netclient

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshstore/netup/pkg/chunk"
	"github.com/meshstore/netup/pkg/identity"
	"github.com/meshstore/netup/pkg/netclient/providerindex"
	"github.com/meshstore/netup/pkg/netclient/session"
	"github.com/meshstore/netup/pkg/netclient/transport"
	netwire "github.com/meshstore/netup/pkg/netclient/wire"
	"github.com/meshstore/netup/pkg/walletpay"
)

// Live is a NetworkClient backed by a real connection to the storage
// network: QUIC (or TCP+TLS fallback) transport, a Noise-IK session
// bound to the wallet's identity, and length-prefixed canonical-CBOR
// envelopes.
type Live struct {
	conn      transport.Conn
	id        *identity.Identity
	networkPK []byte
	seq       uint64
	writeMu   sync.Mutex
}

// DialLive connects to the storage network at addr using the given
// transport (defaults to QUIC if t is nil), completes a Noise-IK
// handshake against the network's known static public key, and returns
// a ready-to-use client.
func DialLive(ctx context.Context, t transport.Transport, addr string, id *identity.Identity, networkPublicKey []byte, tlsConfig *tls.Config) (*Live, error) {
	if t == nil {
		t = transport.NewQUIC()
	}
	conn, err := t.Dial(ctx, addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("netclient: dial %s: %w", addr, err)
	}

	if err := handshake(ctx, conn, id, networkPublicKey); err != nil {
		conn.Close()
		return nil, err
	}

	return &Live{conn: conn, id: id, networkPK: networkPublicKey}, nil
}

// handshake drives the wallet (initiator) side of a Noise-IK exchange
// over conn before any RPC traffic is sent.
func handshake(ctx context.Context, conn transport.Conn, id *identity.Identity, networkPublicKey []byte) error {
	hs, err := session.NewClientHandshake(id, networkPublicKey)
	if err != nil {
		return fmt.Errorf("netclient: start handshake: %w", err)
	}

	hello, err := hs.CreateHello()
	if err != nil {
		return fmt.Errorf("netclient: create hello: %w", err)
	}
	helloBytes, err := hello.Marshal()
	if err != nil {
		return fmt.Errorf("netclient: marshal hello: %w", err)
	}

	msg, err := hs.Step(helloBytes)
	if err != nil {
		return fmt.Errorf("netclient: handshake step 1: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if err := writeFrame(conn, msg); err != nil {
		return fmt.Errorf("netclient: send handshake message: %w", err)
	}

	reply, err := readFrame(conn)
	if err != nil {
		return fmt.Errorf("netclient: read handshake reply: %w", err)
	}
	if _, err := hs.ReadStep(reply); err != nil {
		return fmt.Errorf("netclient: handshake step 2: %w", err)
	}

	if !hs.IsComplete() {
		return fmt.Errorf("netclient: handshake did not complete")
	}
	return nil
}

// Close closes the underlying connection.
func (c *Live) Close() error {
	return c.conn.Close()
}

func (c *Live) nextSeq() uint64 {
	return atomic.AddUint64(&c.seq, 1)
}

// roundTrip sends a signed request envelope and waits for the matching
// response envelope, enforcing an overall deadline via ctx.
func (c *Live) roundTrip(ctx context.Context, kind netwire.Kind, body interface{}) (*netwire.Envelope, error) {
	req := netwire.NewEnvelope(kind, c.id.WalletID(), c.nextSeq(), time.Now(), body)
	if err := req.Sign(c.id.SigningPrivateKey); err != nil {
		return nil, fmt.Errorf("netclient: sign request: %w", err)
	}

	data, err := req.Marshal()
	if err != nil {
		return nil, fmt.Errorf("netclient: marshal request: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	}

	c.writeMu.Lock()
	err = writeFrame(c.conn, data)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("netclient: write request: %w", err)
	}

	respData, err := readFrame(c.conn)
	if err != nil {
		return nil, fmt.Errorf("netclient: read response: %w", err)
	}

	var resp netwire.Envelope
	if err := resp.Unmarshal(respData); err != nil {
		return nil, fmt.Errorf("netclient: unmarshal response: %w", err)
	}
	return &resp, nil
}

func writeFrame(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// PayForChunks implements NetworkClient.
func (c *Live) PayForChunks(ctx context.Context, addrs []chunk.Address) (walletpay.NanoTokens, walletpay.NanoTokens, walletpay.NanoTokens, []chunk.Address, error) {
	body := netwire.PayForChunksRequest{Addresses: addressesToBytes(addrs)}
	resp, err := c.roundTrip(ctx, netwire.KindPayForChunks, body)
	if err != nil {
		return 0, 0, 0, nil, err
	}

	payload, err := decodeBody[netwire.PayForChunksResponse](resp)
	if err != nil {
		return 0, 0, 0, nil, err
	}

	skipped, err := bytesToAddresses(payload.Skipped)
	if err != nil {
		return 0, 0, 0, nil, err
	}

	return walletpay.NanoTokens(payload.CostNano), walletpay.NanoTokens(payload.RoyaltiesNano),
		walletpay.NanoTokens(payload.BalanceNano), skipped, nil
}

// PutChunk implements NetworkClient.
func (c *Live) PutChunk(ctx context.Context, ch chunk.Chunk) error {
	body := netwire.PutChunkRequest{Address: ch.Address[:], Data: ch.Data}
	resp, err := c.roundTrip(ctx, netwire.KindPutChunk, body)
	if err != nil {
		return err
	}
	payload, err := decodeBody[netwire.PutChunkResponse](resp)
	if err != nil {
		return err
	}
	if !payload.Stored {
		return fmt.Errorf("netclient: network declined to store chunk %s", ch.Address)
	}
	return nil
}

// VerifyUploadedChunks implements NetworkClient.
func (c *Live) VerifyUploadedChunks(ctx context.Context, addrs []chunk.Address) ([]chunk.Address, error) {
	body := netwire.VerifyChunksRequest{Addresses: addressesToBytes(addrs)}
	resp, err := c.roundTrip(ctx, netwire.KindVerifyChunks, body)
	if err != nil {
		return nil, err
	}
	payload, err := decodeBody[netwire.VerifyChunksResponse](resp)
	if err != nil {
		return nil, err
	}
	return bytesToAddresses(payload.Present)
}

// ReadBytes implements NetworkClient.
func (c *Live) ReadBytes(ctx context.Context, addr chunk.Address) ([]byte, error) {
	body := netwire.ReadBytesRequest{Address: addr[:]}
	resp, err := c.roundTrip(ctx, netwire.KindReadBytes, body)
	if err != nil {
		return nil, err
	}
	payload, err := decodeBody[netwire.ReadBytesResponse](resp)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// Holders implements NetworkClient: it asks the network for the signed
// holder records it has on file for addr, verifies each against the
// network's known public key, and returns the holder identifiers of
// the records that verify and have not expired.
func (c *Live) Holders(ctx context.Context, addr chunk.Address) ([]string, error) {
	body := netwire.HoldersRequest{Address: addr[:]}
	resp, err := c.roundTrip(ctx, netwire.KindHolders, body)
	if err != nil {
		return nil, err
	}
	payload, err := decodeBody[netwire.HoldersResponse](resp)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(payload.Records))
	for _, raw := range payload.Records {
		rec, err := providerindex.UnmarshalHolderRecord(raw)
		if err != nil {
			continue
		}
		if rec.IsExpired() {
			continue
		}
		if len(c.networkPK) > 0 && rec.Verify(ed25519.PublicKey(c.networkPK)) != nil {
			continue
		}
		out = append(out, rec.Holder)
	}
	return out, nil
}

func decodeBody[T any](env *netwire.Envelope) (*T, error) {
	if wireErr, ok := env.Body.(*netwire.Error); ok {
		return nil, wireErr
	}
	payload, ok := env.Body.(T)
	if ok {
		return &payload, nil
	}
	ptr, ok := env.Body.(*T)
	if ok {
		return ptr, nil
	}
	return nil, fmt.Errorf("netclient: unexpected response body type %T", env.Body)
}

func addressesToBytes(addrs []chunk.Address) [][]byte {
	out := make([][]byte, len(addrs))
	for i, a := range addrs {
		addr := a
		out[i] = addr[:]
	}
	return out
}

func bytesToAddresses(raw [][]byte) ([]chunk.Address, error) {
	out := make([]chunk.Address, len(raw))
	for i, b := range raw {
		if len(b) != chunk.AddressSize {
			return nil, fmt.Errorf("netclient: malformed address in response (%d bytes)", len(b))
		}
		copy(out[i][:], b)
	}
	return out, nil
}
