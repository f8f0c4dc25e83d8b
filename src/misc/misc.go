// Package misc contains some helper functions for tern
package misc

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"
)

// ErrorCheck is a function to throw error to the log and exit the program
func ErrorCheck(msg error) {
	if msg != nil {
		log.Fatalf("encountered error: %v", msg)
	}
}

// StartLogging is a function to start the log...
func StartLogging(logFile string) *os.File {
	logPath := fmt.Sprintf("%v", logFile)
	logFH, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	return logFH
}

// CheckRequiredFlags is a function to check for required flags before running commands
func CheckRequiredFlags(flags *pflag.FlagSet) error {
	requiredError := false
	flagName := ""
	flags.VisitAll(func(flag *pflag.Flag) {
		requiredAnnotation := flag.Annotations[cobraAnnotation]
		if len(requiredAnnotation) == 0 {
			return
		}
		flagRequired := requiredAnnotation[0] == "true"
		if flagRequired && !flag.Changed {
			requiredError = true
			flagName = flag.Name
		}
	})
	if requiredError {
		return fmt.Errorf("required flag `%s` has not been set", flagName)
	}
	return nil
}

// cobraAnnotation is the annotation name used by cobra to mark a flag required
const cobraAnnotation = "cobra_annotation_bash_completion_one_required_flag"
