package main

import (
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/integrii/flaggy"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/usnistgov/smurfemu"
	"github.com/usnistgov/smurfemu/internal/activitydb"
	"gopkg.in/natefinch/lumberjack.v2"
)

var githash = "githash not computed"
var gitdate = "git date not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err := os.MkdirAll(dir, 0775); err != nil {
			return "", err
		}
	}

	fullname := path.Join(dir, filename)
	if _, err := os.Stat(fullname); os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper says where to find config files and sets the defaults.
func setupViper(dotdir string) error {
	viper.SetDefault("verbose", false)
	viper.SetDefault("autostart", false)
	viper.SetDefault("publish.every", 1)
	viper.SetDefault("database.enable", false)
	viper.SetDefault("database.addr", "localhost:9000")

	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotdir, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.AddConfigPath(filepath.FromSlash("/etc/smurfemu"))
	viper.AddConfigPath(dotdir)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, "error reading config file")
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	}, "", log.LstdFlags)
}

// startActivityDB connects to the ClickHouse activity database if the config asks for it.
func startActivityDB(abort <-chan struct{}) *activitydb.Connection {
	if !viper.GetBool("database.enable") {
		return activitydb.Dummy()
	}
	msg := &activitydb.ActivityMessage{
		ID:        smurfemu.Build.RunID,
		Hostname:  smurfemu.Build.Host,
		Githash:   githash,
		Version:   smurfemu.Build.Version,
		GoVersion: runtime.Version(),
		CPUs:      runtime.NumCPU(),
		Start:     smurfemu.StartTime,
	}
	db := activitydb.Start(activitydb.Options(viper.GetString("database.addr")), msg, abort)
	if db.IsConnected() {
		fmt.Printf("Recording activity to ClickHouse at %s\n", viper.GetString("database.addr"))
	} else {
		smurfemu.ProblemLogger.Printf("activity database not available: %v", db.Err())
	}
	return db
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	smurfemu.Build.Date = buildDate
	smurfemu.Build.Githash = githash
	smurfemu.Build.Gitdate = gitdate
	smurfemu.Build.Summary = fmt.Sprintf("smurfemu version %s (git commit %s of %s)",
		smurfemu.Build.Version, githash, gitdate)
	if host, err := os.Hostname(); err == nil {
		smurfemu.Build.Host = host
	} else {
		smurfemu.Build.Host = "host not detected"
	}

	var cpuprofile, memprofile string
	baseport := 5600
	autostart := false
	parser := flaggy.NewParser("smurfemu")
	parser.Description = "SMuRF stream data emulator server"
	parser.Version = smurfemu.Build.Version
	parser.String(&cpuprofile, "", "cpuprofile", "write CPU profile to given file")
	parser.String(&memprofile, "", "memprofile", "write memory profile to given file")
	parser.Int(&baseport, "p", "port", "base TCP port (RPC; status is +1, frames +2)")
	parser.Bool(&autostart, "a", "autostart", "start the simulated frame source at once")
	if err := parser.Parse(); err != nil {
		log.Fatalln("failed to parse arguments: ", err)
	}
	smurfemu.SetPortnumbers(baseport)

	banner := fmt.Sprintf("\nThis is smurfemu version %s (git commit %s)\nRun ID %s\n",
		smurfemu.Build.Version, githash, smurfemu.Build.RunID)
	fmt.Print(banner)

	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Start logging problems and updates to 2 log files.
	HOME, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	dotdir := filepath.Join(HOME, ".smurfemu")
	logdir := filepath.Join(dotdir, "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	smurfemu.ProblemLogger = startLogger(problemname)
	smurfemu.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems       to %s\n", problemname)
	fmt.Printf("Logging client updates to %s\n\n", logname)
	smurfemu.UpdateLogger.Printf("\n\n\n\n%s", banner)

	// Find config file, creating it if needed, and read it.
	if err := setupViper(dotdir); err != nil {
		panic(err)
	}
	if autostart {
		viper.Set("autostart", true)
	}
	if viper.GetBool("verbose") {
		spew.Dump(viper.AllSettings())
		spew.Dump(smurfemu.Ports)
	}

	abort := make(chan struct{})
	db := startActivityDB(abort)
	go func() {
		if err := smurfemu.RunClientUpdater(smurfemu.Ports.Status, abort); err != nil {
			smurfemu.ProblemLogger.Printf("client updater stopped: %v", err)
		}
	}()
	start := time.Now()
	if _, err := smurfemu.RunRPCServer(smurfemu.Ports.RPC, db, true); err != nil {
		smurfemu.ProblemLogger.Printf("RPC server failed after %v: %v", time.Since(start), err)
		fmt.Println(err)
	}
	close(abort)
	db.Wait()
	writeMemoryProfile(memprofile)
}

// writeMemoryProfile writes the memory use profile to the indicated file.
// If `memprofile` is empty, do not write.
func writeMemoryProfile(memprofile string) {
	if memprofile == "" {
		return
	}

	f, err := os.Create(memprofile)
	if err != nil {
		log.Fatal("could not create memory profile: ", err)
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
}
