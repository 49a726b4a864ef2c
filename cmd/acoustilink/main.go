package main

/*------------------------------------------------------------------
 *
 * Purpose:	Main program for the acoustic network stack: node mode
 *		(TUN bridged onto the acoustic link) and router mode
 *		(acoustic <-> Ethernet forwarding with NAT) for normal
 *		operation, plus a sender/receiver file harness for bench
 *		testing the protocol end to end.
 *
 *---------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jochenvg/go-udev"
	"github.com/spf13/pflag"

	"github.com/kc2tty/acoustilink/internal/audioio"
	"github.com/kc2tty/acoustilink/internal/config"
	"github.com/kc2tty/acoustilink/internal/discovery"
	"github.com/kc2tty/acoustilink/internal/mac"
	"github.com/kc2tty/acoustilink/internal/obs"
	"github.com/kc2tty/acoustilink/internal/phy"
	"github.com/kc2tty/acoustilink/internal/router"
	"github.com/kc2tty/acoustilink/internal/tunbridge"
)

const sampleRate = 48000
const framesPerBuffer = 1024

func main() {
	mode := pflag.StringP("mode", "m", "node", "Operating mode: node, router, sender, or receiver.")
	configFile := pflag.StringP("config-file", "c", "", "Configuration file (YAML, or legacy .conf with -legacy-config).")
	legacyConfig := pflag.Bool("legacy-config", false, "Treat -config-file as the legacy line-oriented format.")
	samplesPerLevel := pflag.IntP("samples-per-level", "s", 4, "Audio samples per line-coded level.")
	preambleBytes := pflag.IntP("preamble-bytes", "p", 4, "Preamble repetitions.")
	manchester := pflag.Bool("manchester", false, "Use Manchester line coding instead of 4B5B.")
	peerNode := pflag.IntP("peer", "b", 2, "Peer node number, for sender/receiver file harness I/O naming.")
	selfNode := pflag.IntP("self", "a", 1, "This node's number, for sender/receiver file harness I/O naming.")
	listDevices := pflag.Bool("list-devices", false, "List candidate audio devices, then exit.")
	wavDumpDir := pflag.String("wav-dump-dir", "", "Directory for a diagnostic WAV dump of the received waveform (receiver mode).")
	logDir := pflag.String("log-dir", "", "Directory for a timestamped persistent log file, in addition to stderr.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "acoustilink - an acoustic network node (PHY + MAC + router).\n\n")
		fmt.Fprintf(os.Stderr, "Usage: acoustilink [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.Default().WithPrefix("acoustilink")
	if *logDir != "" {
		f, err := obs.OpenTimestamped(*logDir, "", time.Now())
		if err != nil {
			logger.Fatal("opening log file", "err", err)
		}
		defer f.Close()
		log.Default().SetOutput(io.MultiWriter(os.Stderr, f))
	}

	if *listDevices {
		listCandidateDevices(logger)
		return
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if *legacyConfig {
			cfg, err = config.LoadConf(*configFile)
		} else {
			cfg, err = config.LoadYAML(*configFile)
		}
		if err != nil {
			logger.Fatal("loading config", "err", err)
		}
	}

	kind := phy.FourBFiveBCoding
	if *manchester {
		kind = phy.ManchesterCoding
	}
	enc, err := phy.NewEncoder(*samplesPerLevel, *preambleBytes, kind)
	if err != nil {
		logger.Fatal("building encoder", "err", err)
	}
	dec, err := phy.NewDecoder(*samplesPerLevel, *preambleBytes, kind, phy.MaxFrameDataSize)
	if err != nil {
		logger.Fatal("building decoder", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "sender":
		runFileSender(ctx, logger, enc, dec, *selfNode, *peerNode)
	case "receiver":
		runFileReceiver(ctx, logger, enc, dec, *selfNode, *peerNode, *wavDumpDir)
	case "node":
		runNode(ctx, logger, cfg, *samplesPerLevel, *preambleBytes, kind)
	case "router":
		runRouter(ctx, logger, cfg, *samplesPerLevel, *preambleBytes, kind)
	default:
		fmt.Fprintf(os.Stderr, "unknown -mode %q (want node, router, sender, or receiver)\n", *mode)
		os.Exit(1)
	}
}

// runFileSender reads INPUT<a>to<b>.bin, splits it into MAC-sized
// frames, and drives each through the CSMA/CA + ARQ state machine using
// a soundcard-backed Shared (the file harness is for bench testing the
// protocol logic without real acoustic hardware wired up to the files,
// so it still exercises the real audio path end to end).
func runFileSender(ctx context.Context, logger *log.Logger, enc *phy.Encoder, dec *phy.Decoder, self, peer int) {
	inPath := fmt.Sprintf("INPUT%dto%d.bin", self, peer)
	data, err := os.ReadFile(inPath)
	if err != nil {
		logger.Fatal("reading input file", "path", inPath, "err", err)
	}

	shared, device := openAudioOrExit(logger, sampleRate)
	defer device.Close()

	sender := mac.NewSender(shared, enc, dec)
	running := &atomic.Bool{}
	running.Store(true)
	go stopOnCancel(ctx, running)

	seq := byte(0)
	for off := 0; off < len(data); off += phy.MaxFrameDataSize {
		end := min(off+phy.MaxFrameDataSize, len(data))
		frame := phy.NewDataFrame(seq, data[off:end])
		if !sender.SendFrame(frame, running) {
			logger.Error("send failed or canceled", "seq", seq)
			return
		}
		seq++
	}
	logger.Info("file sender finished", "bytes", len(data), "frames", seq)
}

// runFileReceiver drains decoded frames into OUTPUT<b>to<a>.bin in the
// order their sequence numbers were first accepted, optionally dumping
// the raw received waveform as a WAV file for offline inspection.
func runFileReceiver(ctx context.Context, logger *log.Logger, enc *phy.Encoder, dec *phy.Decoder, self, peer int, wavDumpDir string) {
	outPath := fmt.Sprintf("OUTPUT%dto%d.bin", peer, self)
	f, err := os.Create(outPath)
	if err != nil {
		logger.Fatal("creating output file", "path", outPath, "err", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	shared, device := openAudioOrExit(logger, sampleRate)
	defer device.Close()

	if wavDumpDir != "" {
		shared.EnableCapture()
		defer func() {
			path, err := audioio.DumpWAV(wavDumpDir, time.Now(), sampleRate, shared.DrainCaptured())
			if err != nil {
				logger.Error("writing WAV dump", "err", err)
				return
			}
			logger.Info("wrote WAV dump", "path", path)
		}()
	}

	receiver := mac.NewReceiver(shared, enc, dec)
	running := &atomic.Bool{}
	running.Store(true)
	go stopOnCancel(ctx, running)

	receiver.Run(running, func(seq byte, data []byte) {
		if _, err := w.Write(data); err != nil {
			logger.Error("writing output file", "err", err)
		}
	})
	logger.Info("file receiver stopped")
}

func openAudioOrExit(logger *log.Logger, rate int) (*audioio.Shared, *audioio.PortAudioDevice) {
	shared := audioio.NewShared()
	device, err := audioio.OpenPortAudioDevice(shared, float64(rate), framesPerBuffer)
	if err != nil {
		logger.Fatal("opening audio device", "err", err)
	}
	if err := device.Start(); err != nil {
		logger.Fatal("starting audio stream", "err", err)
	}
	return shared, device
}

func stopOnCancel(ctx context.Context, running *atomic.Bool) {
	<-ctx.Done()
	running.Store(false)
}

// runNode brings up an acoustic host: the TUN device on one side and
// the acoustic MAC on the other, with the bridge threads in between.
func runNode(ctx context.Context, logger *log.Logger, cfg config.Config, samplesPerLevel, preambleBytes int, kind phy.LineCodingKind) {
	dev, err := tunbridge.Open(cfg.TunName)
	if err != nil {
		logger.Fatal("opening TUN device", "err", err)
	}
	defer dev.Close()

	shared, device := openAudioOrExit(logger, cfg.SampleRate)
	defer device.Close()

	iface, err := mac.NewAcousticInterface(shared, samplesPerLevel, preambleBytes, kind)
	if err != nil {
		logger.Fatal("building acoustic interface", "err", err)
	}

	running := &atomic.Bool{}
	running.Store(true)
	go stopOnCancel(ctx, running)

	bridge := tunbridge.NewBridge(dev, cfg.NodeIP, cfg.Netmask, cfg.Gateway)
	toAcoustic := make(chan tunbridge.Outbound, 64)
	fromAcoustic := make(chan []byte, 64)

	go func() {
		if err := bridge.RunReader(ctx, toAcoustic); err != nil && ctx.Err() == nil {
			logger.Error("TUN reader stopped", "err", err)
		}
	}()
	go func() {
		if err := bridge.RunWriter(ctx, fromAcoustic); err != nil && ctx.Err() == nil {
			logger.Error("TUN writer stopped", "err", err)
		}
	}()

	go func() {
		for out := range toAcoustic {
			if err := iface.SendPacket(out.Packet, out.DestMAC, running); err != nil {
				logger.Error("acoustic send failed", "err", err)
			}
		}
	}()

	logger.Info("node running", "tun", dev.Name, "ip", cfg.NodeIP)
	for running.Load() {
		packet, ok := iface.ReceivePacket(500*time.Millisecond, running)
		if !ok {
			continue
		}
		select {
		case fromAcoustic <- packet:
		case <-ctx.Done():
		}
	}
	logger.Info("node stopping")
}

// runRouter bridges the acoustic link to a real Ethernet network: two
// RX loops feed the forwarding core, two TX drains carry its output,
// and an optional DNS-SD announcement makes the gateway discoverable.
func runRouter(ctx context.Context, logger *log.Logger, cfg config.Config, samplesPerLevel, preambleBytes int, kind phy.LineCodingKind) {
	shared, device := openAudioOrExit(logger, cfg.SampleRate)
	defer device.Close()

	iface, err := mac.NewAcousticInterface(shared, samplesPerLevel, preambleBytes, kind)
	if err != nil {
		logger.Fatal("building acoustic interface", "err", err)
	}

	if err := router.ConfigureEthernetLink(cfg.EthernetLink, cfg.EthernetIP, cfg.EthernetNetmask, 0); err != nil {
		logger.Warn("configuring Ethernet link", "err", err)
	}
	sock, err := router.OpenEthernetSocket(cfg.EthernetLink)
	if err != nil {
		logger.Fatal("opening Ethernet socket", "err", err)
	}
	defer sock.Close()

	r := router.NewRouter(router.Config{
		EthernetIP:  cfg.EthernetIP,
		EthernetMAC: sock.LocalMAC(),
		GatewayIP:   cfg.Gateway,
	})
	r.Routes.AddDirectNetwork(andMask(cfg.NodeIP, cfg.Netmask), cfg.Netmask, router.Acoustic)
	r.Routes.AddDirectNetwork(andMask(cfg.EthernetIP, cfg.EthernetNetmask), cfg.EthernetNetmask, router.Ethernet)
	if err := router.SeedArpFromKernel(cfg.EthernetLink, r.Arp); err != nil {
		logger.Warn("seeding ARP table from kernel", "err", err)
	}

	if cfg.DNSSDEnabled {
		if err := discovery.Announce(ctx, "", 0); err != nil {
			logger.Warn("DNS-SD announce failed", "err", err)
		}
	}

	running := &atomic.Bool{}
	running.Store(true)
	go stopOnCancel(ctx, running)

	acousticIn := make(chan []byte, 64)
	ethernetIn := make(chan []byte, 64)
	acousticOut, ethernetOut, wait := r.Run(ctx, acousticIn, ethernetIn)

	go func() {
		defer close(acousticIn)
		for running.Load() {
			packet, ok := iface.ReceivePacket(500*time.Millisecond, running)
			if !ok {
				continue
			}
			select {
			case acousticIn <- packet:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer close(ethernetIn)
		buf := make([]byte, 65536)
		for running.Load() {
			packet, err := sock.ReadIPv4(buf)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("Ethernet read failed", "err", err)
				}
				return
			}
			select {
			case ethernetIn <- packet:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		for out := range acousticOut {
			if err := iface.SendPacket(out.Packet, out.DestMAC, running); err != nil {
				logger.Error("acoustic send failed", "err", err)
			}
		}
	}()
	go func() {
		for out := range ethernetOut {
			if err := sock.WriteIPv4(out.Packet, out.DestMAC); err != nil {
				logger.Error("Ethernet write failed", "err", err)
			}
		}
	}()

	logger.Info("router running", "ethernet", cfg.EthernetLink, "acoustic_ip", cfg.NodeIP, "ethernet_ip", cfg.EthernetIP)
	if err := wait(); err != nil && ctx.Err() == nil {
		logger.Error("router stopped", "err", err)
	}
	logger.Info("router stopping")
}

func andMask(ip, mask [4]byte) [4]byte {
	var out [4]byte
	for i := range out {
		out[i] = ip[i] & mask[i]
	}
	return out
}

// listCandidateDevices enumerates sound devices via the kernel's udev
// database, for operators identifying their sound card. Network and TUN
// devices are not listed.
func listCandidateDevices(logger *log.Logger) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("sound"); err != nil {
		logger.Error("matching sound subsystem", "err", err)
		return
	}
	devices, err := e.Devices()
	if err != nil {
		logger.Error("enumerating devices", "err", err)
		return
	}
	fmt.Println("Candidate audio devices:")
	for _, d := range devices {
		fmt.Printf("  %s\t%s\n", d.Syspath(), d.Sysname())
	}
}

