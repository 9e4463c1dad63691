package conn_test

import (
	"net/netip"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/quicgo/conn"
	"github.com/nabbar/quicgo/qcrypto"
	"github.com/nabbar/quicgo/quictest"
)

var (
	clientAddr = netip.MustParseAddrPort("198.51.100.1:5000")
	serverAddr = netip.MustParseAddrPort("203.0.113.1:4433")
)

type peers struct {
	client, server             *conn.Connection
	clientHS, serverHS         *quictest.Handshake
	clientSocket, serverSocket *quictest.Socket
}

// newPeers builds a client and a server Connection addressed at each other,
// sharing one symmetric fake cipher pair so either side can decrypt what the
// other sent, mirroring how packet/codec_test.go's openableAEAD is reused
// across both directions of a single fake cipher suite.
func newPeers() peers {
	keys := quictest.NewStaticKeys()
	clientCID := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	serverCID := []byte{8, 7, 6, 5, 4, 3, 2, 1}

	clientHS := quictest.NewHandshake()
	serverHS := quictest.NewHandshake()
	clientHS.QueueInstall(qcrypto.Initial, keys.Directional(), keys.Directional())
	serverHS.QueueInstall(qcrypto.Initial, keys.Directional(), keys.Directional())

	clientSocket := quictest.NewSocket()
	serverSocket := quictest.NewSocket()

	clientSettings := conn.NewTransportSettings(conn.WithServer(false))
	serverSettings := conn.NewTransportSettings(conn.WithServer(true))

	client := conn.NewConnection(clientSettings, clientHS, clientSocket, clientAddr, serverAddr, clientCID, serverCID, nil)
	server := conn.NewConnection(serverSettings, serverHS, serverSocket, serverAddr, clientAddr, serverCID, clientCID, nil)

	return peers{
		client: client, server: server,
		clientHS: clientHS, serverHS: serverHS,
		clientSocket: clientSocket, serverSocket: serverSocket,
	}
}

var _ = Describe("Connection", func() {
	It("starts Open with a usable stream manager", func() {
		p := newPeers()
		Expect(p.client.State()).To(Equal(conn.StateOpen))
		Expect(p.client.Streams()).NotTo(BeNil())
	})

	It("sends nothing before any write cipher is installed", func() {
		hs := quictest.NewHandshake()
		sock := quictest.NewSocket()
		c := conn.NewConnection(conn.NewTransportSettings(conn.WithServer(false)), hs, sock, clientAddr, serverAddr,
			[]byte{1, 2, 3, 4}, []byte{5, 6, 7, 8}, nil)
		Expect(c.WritePackets(time.Now())).To(Succeed())
		Expect(sock.SentCount()).To(Equal(0))
	})

	It("pads a client Initial carrying CRYPTO data to the 1200-byte floor", func() {
		p := newPeers()
		p.clientHS.QueueOutgoing(qcrypto.Initial, []byte("pretend-client-hello-bytes"))

		Expect(p.client.WritePackets(time.Now())).To(Succeed())

		Expect(p.clientSocket.SentCount()).To(Equal(1))
		Expect(len(p.clientSocket.Sent[0].Data)).To(BeNumerically(">=", 1200))
	})

	It("delivers the client's CRYPTO bytes to the server's handshake engine", func() {
		p := newPeers()
		payload := []byte("client-hello-placeholder")
		p.clientHS.QueueOutgoing(qcrypto.Initial, payload)

		now := time.Now()
		Expect(p.client.WritePackets(now)).To(Succeed())

		raw := p.clientSocket.Sent[0].Data
		Expect(p.server.HandleDatagram(raw, clientAddr, now)).To(Succeed())

		fed := p.serverHS.FedBytes(qcrypto.Initial)
		Expect(fed).To(HaveLen(1))
		Expect(fed[0]).To(Equal(payload))
	})

	It("round-trips a stream once both sides have AppData keys", func() {
		p := newPeers()
		appKeys := quictest.NewStaticKeys()
		p.clientHS.QueueInstall(qcrypto.AppData, appKeys.Directional(), appKeys.Directional())
		p.serverHS.QueueInstall(qcrypto.AppData, appKeys.Directional(), appKeys.Directional())

		now := time.Now()
		// One write pass each drains the newly queued AppData install.
		Expect(p.client.WritePackets(now)).To(Succeed())
		Expect(p.server.WritePackets(now)).To(Succeed())
		p.clientSocket.Sent, p.serverSocket.Sent = nil, nil

		send, _, err := p.client.Streams().OpenBidi()
		Expect(err).NotTo(HaveOccurred())
		_, err = send.Write([]byte("hello world"), true)
		Expect(err).NotTo(HaveOccurred())

		Expect(p.client.WritePackets(now)).To(Succeed())
		Expect(p.clientSocket.SentCount()).To(BeNumerically(">=", 1))

		for _, dg := range p.clientSocket.Sent {
			Expect(p.server.HandleDatagram(dg.Data, clientAddr, now)).To(Succeed())
		}

		_, recv, err := p.server.Streams().GetOrAccept(send.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(recv).NotTo(BeNil())

		buf := make([]byte, 64)
		n, err := recv.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("hello world"))
	})

	It("treats a full socket send buffer as non-fatal and keeps the connection open", func() {
		p := newPeers()
		p.clientHS.QueueOutgoing(qcrypto.Initial, []byte("pretend-client-hello-bytes"))
		p.clientSocket.Err = syscall.EAGAIN

		Expect(p.client.WritePackets(time.Now())).To(Succeed())
		Expect(p.clientSocket.SentCount()).To(Equal(0))
		Expect(p.client.State()).To(Equal(conn.StateOpen))
	})

	It("flips the short header's key-phase bit once KeyUpdateEveryNPackets is reached", func() {
		keys := quictest.NewStaticKeys()
		clientCID := []byte{1, 2, 3, 4, 5, 6, 7, 8}
		serverCID := []byte{8, 7, 6, 5, 4, 3, 2, 1}

		hs := quictest.NewHandshake()
		hs.QueueInstall(qcrypto.Initial, keys.Directional(), keys.Directional())
		appKeys := quictest.NewStaticKeys()
		hs.QueueInstall(qcrypto.AppData, appKeys.Directional(), appKeys.Directional())
		hs.ArmNextPhase(appKeys.Directional(), appKeys.Directional(), nil)

		sock := quictest.NewSocket()
		settings := conn.NewTransportSettings(conn.WithServer(false), conn.WithKeyUpdateInterval(1))
		c := conn.NewConnection(settings, hs, sock, clientAddr, serverAddr, clientCID, serverCID, nil)

		now := time.Now()
		Expect(c.WritePackets(now)).To(Succeed()) // drains the AppData install, nothing ack-eliciting queued yet

		send, _, err := c.Streams().OpenBidi()
		Expect(err).NotTo(HaveOccurred())
		_, err = send.Write([]byte("a"), false)
		Expect(err).NotTo(HaveOccurred())
		sock.Sent = nil
		Expect(c.WritePackets(now)).To(Succeed())
		Expect(sock.SentCount()).To(Equal(1))
		firstPhaseBit := (sock.Sent[0].Data[0] >> 2) & 0x01

		_, err = send.Write([]byte("b"), true)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.WritePackets(now)).To(Succeed())
		Expect(sock.SentCount()).To(Equal(2))
		secondPhaseBit := (sock.Sent[1].Data[0] >> 2) & 0x01

		Expect(secondPhaseBit).NotTo(Equal(firstPhaseBit))
	})

	It("closes once the idle timer fires with nothing further exchanged", func() {
		p := newPeers()
		p.clientHS.QueueOutgoing(qcrypto.Initial, []byte("x"))
		now := time.Now()
		Expect(p.client.WritePackets(now)).To(Succeed())
		Expect(p.clientSocket.SentCount()).To(Equal(1))

		future := now.Add(31 * time.Second)
		p.client.Loop().RunOnce(future)

		Expect(p.client.State()).To(Equal(conn.StateClosed))
	})
})
