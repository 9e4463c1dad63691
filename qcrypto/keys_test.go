package qcrypto_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/qcrypto"
)

type fakeAEAD struct{ tag byte }

func (f *fakeAEAD) Seal(dst, nonce, plaintext, aad []byte) []byte {
	return append(append(dst, plaintext...), f.tag)
}

func (f *fakeAEAD) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	return append(dst, ciphertext[:len(ciphertext)-1]...), nil
}

func (f *fakeAEAD) Overhead() int { return 1 }

type fakeHP struct{}

func (fakeHP) Mask(sample []byte) [5]byte { return [5]byte{} }

var _ = Describe("Keyring", func() {
	It("reports a level as absent until keys are installed", func() {
		kr := qcrypto.NewKeyring()
		_, ok := kr.Get(qcrypto.Initial)
		Expect(ok).To(BeFalse())

		kr.Install(qcrypto.Initial, &qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}}, nil)
		lk, ok := kr.Get(qcrypto.Initial)
		Expect(ok).To(BeTrue())
		Expect(lk.Read).NotTo(BeNil())
		Expect(lk.Write).To(BeNil())
	})

	It("requires both directions before reporting AppData ready", func() {
		kr := qcrypto.NewKeyring()
		Expect(kr.HasAppData()).To(BeFalse())

		kr.Install(qcrypto.AppData, &qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}}, nil)
		Expect(kr.HasAppData()).To(BeFalse())

		kr.Install(qcrypto.AppData, nil, &qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}})
		Expect(kr.HasAppData()).To(BeTrue())
	})

	It("refuses a key update when no next phase is armed", func() {
		kr := qcrypto.NewKeyring()
		err := kr.UpdateKeys()
		Expect(err).To(HaveOccurred())
	})

	It("promotes armed keys and toggles the phase on update", func() {
		kr := qcrypto.NewKeyring()
		Expect(kr.Phase()).To(Equal(qcrypto.PhaseZero))

		kr.ArmNextPhase(
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{tag: 1}, HP: fakeHP{}},
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{tag: 1}, HP: fakeHP{}},
		)
		Expect(kr.UpdateKeys()).To(Succeed())
		Expect(kr.Phase()).To(Equal(qcrypto.PhaseOne))

		lk, ok := kr.Get(qcrypto.AppData)
		Expect(ok).To(BeTrue())
		Expect(lk.Read.AEAD.(*fakeAEAD).tag).To(Equal(byte(1)))
	})

	It("accepts any ACK while no update is pending verification", func() {
		kr := qcrypto.NewKeyring()
		Expect(kr.CheckAckPhase(qcrypto.PhaseZero, 9000)).To(BeTrue())
	})

	It("rejects an ACK of the new phase's packets arriving under the old phase", func() {
		kr := qcrypto.NewKeyring()
		kr.ArmNextPhase(
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}},
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}},
		)
		Expect(kr.UpdateKeys()).To(Succeed())
		kr.BeginPendingVerification(42)

		Expect(kr.CheckAckPhase(qcrypto.PhaseZero, 42)).To(BeFalse())
	})

	It("confirms and clears pending verification on an ACK decrypted under the new phase", func() {
		kr := qcrypto.NewKeyring()
		kr.ArmNextPhase(
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}},
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}},
		)
		Expect(kr.UpdateKeys()).To(Succeed())
		kr.BeginPendingVerification(42)

		Expect(kr.CheckAckPhase(qcrypto.PhaseOne, 42)).To(BeTrue())
		_, pending := kr.PendingVerification()
		Expect(pending).To(BeFalse())
	})

	It("ignores old-phase ACKs of packets sent before the update", func() {
		kr := qcrypto.NewKeyring()
		kr.ArmNextPhase(
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}},
			&qcrypto.DirectionalKeys{AEAD: &fakeAEAD{}, HP: fakeHP{}},
		)
		Expect(kr.UpdateKeys()).To(Succeed())
		kr.BeginPendingVerification(42)

		Expect(kr.CheckAckPhase(qcrypto.PhaseZero, 41)).To(BeTrue())
	})
})

var _ = Describe("DeriveNext", func() {
	It("is deterministic for the same input secret", func() {
		secret := make([]byte, 32)
		a := qcrypto.DeriveNext(secret)
		b := qcrypto.DeriveNext(secret)
		Expect(a).To(Equal(b))
		Expect(a).To(HaveLen(len(secret)))
	})

	It("produces a different secret for a different input", func() {
		a := qcrypto.DeriveNext(make([]byte, 32))
		other := make([]byte, 32)
		other[0] = 1
		b := qcrypto.DeriveNext(other)
		Expect(a).NotTo(Equal(b))
	})
})
