package config

import (
	"log"
	"os"

	"github.com/adrg/xdg"
	"gopkg.in/ini.v1"
)

var configFilePath string

type IniFile struct {
	*General
	*Usb
	*Midi
	*Remote
	*Tray
}

type General struct {
	LogFrames      bool
	StrictChecksum bool
}

type Usb struct {
	VendorId      string
	ProductId     string
	Config        int
	Interface     int
	AltSetting    int
	InEndpoint    string
	OutEndpoint   string
	BulkInterface int
	BulkEndpoint  string
	// milliseconds
	WriteTimeout int
	PollInterval int
}

type Midi struct {
	Enabled  bool
	PortIn   string
	PortOut  string
	Channel  int
	GainCc   int
	MasterCc int
	TrebleCc int
}

type Remote struct {
	Enabled bool
	Listen  string
}

type Tray struct {
	Enabled bool
}

var Config = IniFile{
	&General{
		LogFrames:      false,
		StrictChecksum: false,
	},
	&Usb{
		VendorId:      "0x0483",
		ProductId:     "0x5703",
		Config:        1,
		Interface:     3,
		AltSetting:    0,
		InEndpoint:    "0x81",
		OutEndpoint:   "0x02",
		BulkInterface: 2,
		BulkEndpoint:  "0x03",
		WriteTimeout:  3000,
		PollInterval:  1000,
	},
	&Midi{
		Enabled:  false,
		PortIn:   "Mooer",
		PortOut:  "Mooer",
		Channel:  0,
		GainCc:   20,
		MasterCc: 21,
		TrebleCc: -1,
	},
	&Remote{
		Enabled: false,
		Listen:  "localhost:8414",
	},
	&Tray{
		Enabled: false,
	},
}

// LoadConfig reads the config file at path into Config and writes it back
// so that new keys show up with their defaults.
func LoadConfig(path string) error {
	configFilePath = path
	cfg, err := ini.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		cfg = ini.Empty()
	}
	cfg.NameMapper = ini.TitleUnderscore
	cfg.ValueMapper = os.ExpandEnv
	if section, err := cfg.GetSection("general"); err == nil {
		section.MapTo(Config.General)
	}
	if section, err := cfg.GetSection("usb"); err == nil {
		section.MapTo(Config.Usb)
	}
	if section, err := cfg.GetSection("midi"); err == nil {
		section.MapTo(Config.Midi)
	}
	if section, err := cfg.GetSection("remote"); err == nil {
		section.MapTo(Config.Remote)
	}
	if section, err := cfg.GetSection("tray"); err == nil {
		section.MapTo(Config.Tray)
	}
	//TODO: only save if changes
	newCfg := ini.Empty()
	if err = ini.ReflectFromWithMapper(newCfg, &Config, ini.TitleUnderscore); err != nil {
		return err
	}
	return newCfg.SaveTo(path)
}

func InitConfig() {
	path, err := xdg.ConfigFile("mooerctl/mooerctl.config")
	if err == nil {
		err = LoadConfig(path)
	}
	if err != nil {
		log.Fatal(err.Error())
	}
}

func GetConfigFilePath() string {
	return configFilePath
}
