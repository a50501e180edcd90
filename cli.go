package trafficlight

import "github.com/alecthomas/kong"

var Version = "dev"

type CLI struct {
	Config    string           `help:"config file path or URL" short:"c" env:"TRAFFICLIGHT_CONFIG"`
	Debug     bool             `help:"debug mode" short:"d" default:"false"`
	Crossings int              `help:"number of green phases to wait for (0 means forever)" short:"n" default:"0"`
	Quiet     bool             `help:"do not print phase changes to stdout" short:"q" default:"false"`
	Version   kong.VersionFlag `help:"show version"`
}
