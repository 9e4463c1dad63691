package packet_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/packet"
	"github.com/nabbar/quicgo/qcrypto"
)

var errShortCiphertext = errors.New("ciphertext shorter than tag")

type noopHP struct{}

func (noopHP) Mask(sample []byte) [5]byte { return [5]byte{} }

type staticKeys struct{ k packet.Keys }

func (s staticKeys) ReadKeys(level qcrypto.Level) (packet.Keys, bool) { return s.k, true }

var _ = Describe("Parse/SerializePacket", func() {
	k := packet.Keys{AEAD: openableAEAD{}, HP: noopHP{}}
	src := staticKeys{k: k}

	It("round-trips a long-header Initial packet", func() {
		hdr := packet.Header{
			IsLong:       true,
			Type:         packet.TypeInitial,
			Version:      1,
			DestCID:      packet.ConnectionID{1, 2, 3, 4},
			SrcCID:       packet.ConnectionID{5, 6, 7, 8},
			PacketNumber: 2,
		}
		frames := []byte{0x01, 0x01, 0x01} // PING, PING, PING

		raw, err := packet.SerializePacket(hdr, frames, 0, k)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).NotTo(BeEmpty())

		res := packet.Parse(raw, src, 0)
		Expect(res.Kind).To(Equal(packet.RegularPacket))
		Expect(res.Header.Type).To(Equal(packet.TypeInitial))
		Expect(res.Header.Version).To(Equal(uint32(1)))
		Expect(res.Payload).To(Equal(frames))
	})

	It("reports cipher unavailable when no keys are installed for the level", func() {
		hdr := packet.Header{
			IsLong:       true,
			Type:         packet.TypeHandshake,
			Version:      1,
			DestCID:      packet.ConnectionID{1},
			SrcCID:       packet.ConnectionID{2},
			PacketNumber: 1,
		}
		raw, err := packet.SerializePacket(hdr, []byte{0x01, 0x01, 0x01}, 0, k)
		Expect(err).NotTo(HaveOccurred())

		res := packet.Parse(raw, noKeys{}, 0)
		Expect(res.Kind).To(Equal(packet.CipherUnavailable))
		Expect(res.ProtectionType).To(Equal(qcrypto.Handshake))
	})

	It("stops splitting coalesced packets at a short header", func() {
		long := mustSerialize(packet.Header{
			IsLong: true, Type: packet.TypeHandshake, Version: 1,
			DestCID: packet.ConnectionID{9}, SrcCID: packet.ConnectionID{9}, PacketNumber: 1,
		}, []byte{0x01, 0x01, 0x01}, k)
		short := mustSerialize(packet.Header{
			IsLong: false, DestCID: packet.ConnectionID{9}, PacketNumber: 2,
		}, []byte{0x01, 0x01, 0x01}, k)

		datagram := append(append([]byte{}, long...), short...)
		results := packet.Split(datagram, src, 1)
		Expect(results).To(HaveLen(2))
		Expect(results[0].Header.IsLong).To(BeTrue())
		Expect(results[1].Header.IsLong).To(BeFalse())
	})
})

type openableAEAD struct{}

func (openableAEAD) Seal(dst, nonce, plaintext, aad []byte) []byte {
	out := append(dst, plaintext...)
	return append(out, make([]byte, 16)...)
}

func (openableAEAD) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < 16 {
		return nil, errShortCiphertext
	}
	return append(dst, ciphertext[:len(ciphertext)-16]...), nil
}

func (openableAEAD) Overhead() int { return 16 }

type noKeys struct{}

func (noKeys) ReadKeys(level qcrypto.Level) (packet.Keys, bool) { return packet.Keys{}, false }

func mustSerialize(hdr packet.Header, frames []byte, k packet.Keys) []byte {
	raw, err := packet.SerializePacket(hdr, frames, 0, k)
	Expect(err).NotTo(HaveOccurred())
	return raw
}
