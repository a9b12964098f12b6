package midictl

import (
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/normen/mooerctl/config"
	"github.com/normen/mooerctl/msg"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var state *MidiState

var midiInput drivers.In
var midiOutput drivers.Out
var midiStop func()

var connectRetry *time.Timer
var toDevice chan<- interface{}
var fromDevice <-chan interface{}
var interrupt chan os.Signal
var connection chan int

// get a list of midi outputs
func GetMidiOutputs() []string {
	outs := midi.GetOutPorts()
	var names []string
	for _, output := range outs {
		names = append(names, output.String())
	}
	return names
}

// get a list of midi inputs
func GetMidiInputs() []string {
	ins := midi.GetInPorts()
	var names []string
	for _, input := range ins {
		names = append(names, input.String())
	}
	return names
}

// InitMidi starts the midi bridge. Requests for the pedal are posted to
// toDev, pedal events are read from fromDev.
func InitMidi(toDev chan<- interface{}, fromDev <-chan interface{}) {
	toDevice = toDev
	fromDevice = fromDev
	InitInterp()
	interrupt = make(chan os.Signal, 1)
	connection = make(chan int, 1)
	signal.Notify(interrupt, os.Interrupt)
	state = NewMidiState(byte(config.Config.Midi.Channel))
	connection <- 0
	go runLoop()
}

func connect() {
	var err error
	disconnect()

	midiInput, err = midi.FindInPort(config.Config.Midi.PortIn)
	if err != nil {
		log.Printf("Could not find MIDI Input '%s'", config.Config.Midi.PortIn)
		retryConnect()
		return
	}

	midiOutput, err = midi.FindOutPort(config.Config.Midi.PortOut)
	if err != nil {
		log.Printf("Could not find MIDI Output '%s'", config.Config.Midi.PortOut)
		retryConnect()
		return
	}

	err = midiInput.Open()
	if err != nil {
		log.Printf("Could not open MIDI Input '%s'", config.Config.Midi.PortIn)
		retryConnect()
		return
	}
	err = midiOutput.Open()
	if err != nil {
		log.Printf("Could not open MIDI Output '%s'", config.Config.Midi.PortOut)
		retryConnect()
		return
	}

	midiStop, err = midi.ListenTo(midiInput, receiveMidi)
	if err != nil {
		log.Print(err)
		retryConnect()
		return
	}

	// resend the program on the next patch change
	state.Reset()
	toDevice <- msg.IdentifyRequest{}
	log.Print("MIDI Connected")
}

func disconnect() {
	if midiStop != nil {
		midiStop()
		midiStop = nil
	}
	if midiInput != nil {
		err := midiInput.Close()
		if err != nil {
			log.Print(err)
		}
		midiInput = nil
	}
	if midiOutput != nil {
		err := midiOutput.Close()
		if err != nil {
			log.Print(err)
		}
		midiOutput = nil
	}
}

func retryConnect() {
	log.Print("Retry connection..")
	disconnect()
	if connectRetry != nil {
		connectRetry.Stop()
	}
	connectRetry = time.AfterFunc(3*time.Second, func() { connection <- 0 })
}

func checkMidiConnection() bool {
	if midiInput != nil {
		if !midiInput.IsOpen() {
			retryConnect()
			return false
		}
	} else {
		return false
	}
	return true
}

func sendMidi(m []midi.Message) {
	if len(m) == 0 {
		return
	}
	send, err := midi.SendTo(midiOutput)
	if err != nil {
		log.Print(err)
		return
	}
	for _, message := range m {
		if err := send(message); err != nil {
			log.Print(err)
		}
	}
}

func receiveMidi(message midi.Message, timestamps int32) {
	if request := translate(message, config.Config.Midi); request != nil {
		toDevice <- request
	}
}

// translate turns an incoming controller message into a pedal request,
// nil when the message is not mapped.
func translate(message midi.Message, cfg *config.Midi) interface{} {
	var c, k, v uint8
	if message.GetProgramChange(&c, &k) {
		if int(c) != cfg.Channel {
			return nil
		}
		return msg.PresetChangeRequest{Index: int(k)}
	} else if message.GetControlChange(&c, &k, &v) {
		if int(c) != cfg.Channel {
			return nil
		}
		var param string
		switch int(k) {
		case cfg.GainCc:
			param = "gain"
		case cfg.MasterCc:
			param = "master"
		case cfg.TrebleCc:
			param = "treble"
		default:
			return nil
		}
		return msg.AmpParamRequest{Param: param, Value: CcToParam(v)}
	}
	return nil
}

// ampControls echoes the mapped amp parameters back to the controller.
func ampControls(e msg.AmpSettingsMessage, cfg *config.Midi) []midi.Message {
	var m []midi.Message
	for _, c := range []struct {
		cc    int
		value uint16
	}{
		{cfg.GainCc, e.Gain},
		{cfg.MasterCc, e.Master},
		{cfg.TrebleCc, e.Treble},
	} {
		if message, ok := state.SetControl(c.cc, c.value); ok {
			m = append(m, message)
		}
	}
	return m
}

// only writes messages, reader is already looping
func runLoop() {
	for {
		select {
		case state := <-connection:
			if state == 0 {
				connect()
			}
		case <-interrupt:
			log.Print("Ending MIDI runloop")
			disconnect()
			return
		case message := <-fromDevice:
			if !checkMidiConnection() {
				continue
			}
			switch e := message.(type) {
			case msg.PatchChangeMessage:
				if m, ok := state.SetProgram(e.Index); ok {
					sendMidi([]midi.Message{m})
				}
			case msg.AmpSettingsMessage:
				sendMidi(ampControls(e, config.Config.Midi))
			case msg.IdentityMessage:
				log.Printf("MIDI bridge attached to %s %s", e.Model, e.Version)
			}
		}
	}
}
