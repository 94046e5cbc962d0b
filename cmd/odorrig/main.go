package main

import (
	"log"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config func(string) error `long:"config" no-ini:"true" description:"Load option values from an INI file"`

	MotorDevice string        `long:"motor-device" env:"ODORRIG_MOTOR_DEVICE" description:"Motor controller device, or port name on the SPJS server (default: first of /dev/ttyACM0, /dev/ttyACM1)"`
	MotorBaud   int           `long:"motor-baud" env:"ODORRIG_MOTOR_BAUD" default:"115200" description:"Motor controller baud rate"`
	OdorDevice  string        `long:"odor-device" env:"ODORRIG_ODOR_DEVICE" description:"Odor valve controller device (default: first /dev/ttyACM* not used by the motor)"`
	OdorBaud    int           `long:"odor-baud" env:"ODORRIG_ODOR_BAUD" default:"9600" description:"Odor valve controller baud rate"`
	BootSettle  time.Duration `long:"boot-settle" env:"ODORRIG_BOOT_SETTLE" default:"2s" description:"Time for a controller to reset after its port opens"`
	MaxWait     time.Duration `long:"max-wait" env:"ODORRIG_MAX_WAIT" default:"0s" description:"Give up on a motor response after this long (0 waits forever)"`
	SPJS        string        `long:"spjs" env:"ODORRIG_SPJS" description:"Websocket URL of an SPJS server to reach the motor controller through"`
	Simulate    bool          `long:"simulate" env:"ODORRIG_SIMULATE" description:"Use the built-in firmware simulator instead of hardware"`

	TotalSteps   int64 `long:"total-steps" env:"ODORRIG_TOTAL_STEPS" default:"184245" description:"Rail length in steps"`
	EndBuffer    int64 `long:"end-buffer" env:"ODORRIG_END_BUFFER" default:"150" description:"Steps kept clear at each end of the rail"`
	Pairs        int   `long:"pairs" env:"ODORRIG_PAIRS" default:"3" description:"Number of locust pairs on the rail"`
	AdvanceGuard int64 `long:"advance-guard" env:"ODORRIG_ADVANCE_GUARD" default:"500" description:"Do not advance when closer than this to the left limit"`

	Debug bool `long:"debug" env:"ODORRIG_DEBUG" description:"Log discarded controller output"`

	Run RunCommand `command:"run" description:"Run the full odor/trial/pair experiment"`
	Jog JogCommand `command:"jog" description:"Issue a single motor command"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	log.SetFlags(log.Lshortfile)

	parser.LongDescription = "odorrig - locust odor rig controller"
	opts.Config = func(path string) error {
		return flags.NewIniParser(parser).ParseFile(path)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
