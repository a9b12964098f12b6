package main

/**
Compile Linux:
sudo apt install clang libasound2-dev libusb-1.0-0-dev
**/

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/normen/mooerctl/config"
	"github.com/normen/mooerctl/device"
	"github.com/normen/mooerctl/mcptools"
	"github.com/normen/mooerctl/midictl"
	"github.com/normen/mooerctl/msg"
	"github.com/normen/mooerctl/remote"
	"github.com/normen/mooerctl/transport"
	"github.com/normen/mooerctl/tray"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

var VERSION string = "v0.1.0"

// TODO: config file command line option
func main() {
	var showMidi bool
	var showHelp bool
	var runMcp bool
	var runTray bool
	var uploadFile string
	var slot int
	flag.BoolVar(&showMidi, "l", false, "List all installed MIDI devices")
	flag.BoolVar(&showHelp, "h", false, "Show Help")
	flag.BoolVar(&runMcp, "mcp", false, "Serve pedal tools over MCP on stdio")
	flag.BoolVar(&runTray, "tray", false, "Show a tray icon")
	flag.StringVar(&uploadFile, "u", "", "Upload a .amp, .gnr, .wav, .mo or .mbf file and exit")
	flag.IntVar(&slot, "slot", 0, "Target slot for -u")
	flag.Parse()
	log.Printf("MOOERCTL %v", VERSION)
	if showHelp {
		fmt.Println("Usage: mooerctl [options]")
		flag.PrintDefaults()
		return
	} else if showMidi {
		ShowMidiPorts()
		config.InitConfig()
		return
	}
	config.InitConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sched, err := transport.Open(usbOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer sched.Close()
	sched.Start()

	session := device.NewSession(sched)
	session.LogFrames = config.Config.General.LogFrames
	session.StrictChecksum = config.Config.General.StrictChecksum
	events := make(chan interface{}, 100)
	session.AddListener(device.NewForwarder(session, events))
	go func() {
		session.Run(ctx, sched.Reports())
		select {
		case events <- msg.StatusMessage{Text: "USB disconnected"}:
		default:
		}
	}()
	if err := session.Start(ctx); err != nil {
		log.Fatal(err)
	}

	if uploadFile != "" {
		if err := device.CheckUploadSlot(uploadFile, slot); err != nil {
			log.Fatalf("Nothing uploaded: %v", err)
		}
		waitIdentity(ctx, session)
		if err := session.UploadFile(ctx, uploadFile, slot); err != nil {
			log.Fatal(err)
		}
		log.Printf("Uploaded %s", uploadFile)
		return
	}

	requests := make(chan interface{}, 100)
	go session.Serve(ctx, requests)

	var sinks []chan interface{}
	bridge := func() chan interface{} {
		c := make(chan interface{}, 100)
		sinks = append(sinks, c)
		return c
	}
	if config.Config.Midi.Enabled {
		midictl.InitMidi(requests, bridge())
	}
	if config.Config.Remote.Enabled {
		remote.InitRemote(requests, bridge())
	}
	var trayEvents chan interface{}
	if runTray || config.Config.Tray.Enabled {
		trayEvents = bridge()
	}
	go fanOut(ctx, events, sinks)

	if runMcp {
		if err := mcptools.ServeStdio(session, VERSION); err != nil {
			log.Print(err)
		}
		return
	}
	if trayEvents != nil {
		// systray needs the main goroutine
		go func() {
			<-ctx.Done()
			tray.Quit()
		}()
		tray.Run(trayEvents, cancel)
		return
	}
	<-ctx.Done()
}

// fanOut copies every session event to each bridge, dropping events for
// bridges that fall behind.
func fanOut(ctx context.Context, events <-chan interface{}, sinks []chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			for _, sink := range sinks {
				select {
				case sink <- e:
				default:
				}
			}
		}
	}
}

func waitIdentity(ctx context.Context, session *device.Session) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	for session.Identity().Model == "" {
		select {
		case <-ctx.Done():
			log.Print("No identity received, uploading anyway")
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
	id := session.Identity()
	log.Printf("Connected to %s %s", id.Model, id.Version)
}

func usbOptions() transport.Options {
	cfg := config.Config.Usb
	opts := transport.DefaultOptions()
	opts.VendorID = uint16(parseHex("vendor_id", cfg.VendorId))
	opts.ProductID = uint16(parseHex("product_id", cfg.ProductId))
	opts.Config = cfg.Config
	opts.Interface = cfg.Interface
	opts.AltSetting = cfg.AltSetting
	opts.InEndpoint = parseHex("in_endpoint", cfg.InEndpoint)
	opts.OutEndpoint = parseHex("out_endpoint", cfg.OutEndpoint)
	opts.BulkInterface = cfg.BulkInterface
	opts.BulkEndpoint = parseHex("bulk_endpoint", cfg.BulkEndpoint)
	opts.WriteTimeout = time.Duration(cfg.WriteTimeout) * time.Millisecond
	opts.PollInterval = time.Duration(cfg.PollInterval) * time.Millisecond
	return opts
}

func parseHex(key, value string) int {
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		log.Fatalf("Invalid usb.%s '%s': %v", key, value, err)
	}
	return int(v)
}

func ShowMidiPorts() {
	inputs := midictl.GetMidiInputs()
	for _, v := range inputs {
		fmt.Printf("MIDI Input: %s\n", v)
	}
	outputs := midictl.GetMidiOutputs()
	for _, v := range outputs {
		fmt.Printf("MIDI Output: %s\n", v)
	}
}
