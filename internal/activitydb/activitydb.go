// Package activitydb records server activity and emulator configuration
// changes in a ClickHouse database. Every method is a no-op on a connection
// that never reached the server, so callers need not check.
package activitydb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// Connection is a connection to the activity database.
type Connection struct {
	conn          clickhouse.Conn
	err           error
	errLock       sync.Mutex // guards err, which the handler goroutine sets
	activityEntry *ActivityMessage
	configmsg     chan *ConfigChangeMessage
	sync.WaitGroup
}

const databaseName = "smurfemu" // official SQL name of the database

const timeFormat = "2006-01-02 15:04:05.000000"

// IsConnected tells whether the database accepted the connection and no insert has failed since.
func (db *Connection) IsConnected() bool {
	return (db != nil) && (db.conn != nil) && (db.Err() == nil)
}

// Err returns the error that disconnected the database, if any.
func (db *Connection) Err() error {
	if db == nil {
		return nil
	}
	db.errLock.Lock()
	defer db.errLock.Unlock()
	return db.err
}

func (db *Connection) setErr(err error) {
	db.errLock.Lock()
	defer db.errLock.Unlock()
	db.err = err
}

// Options returns the connection options, taking credentials from the
// SMURFEMU_DB_USER and SMURFEMU_DB_PASSWORD environment variables.
func Options(addr string) *clickhouse.Options {
	auth := clickhouse.Auth{
		Database: databaseName,
		Username: os.Getenv("SMURFEMU_DB_USER"),
		Password: os.Getenv("SMURFEMU_DB_PASSWORD"),
	}
	client := clickhouse.ClientInfo{
		Products: []struct {
			Name    string
			Version string
		}{
			{Name: "smurfemu", Version: "unknown"},
		},
	}
	return &clickhouse.Options{
		Addr:        []string{addr},
		Auth:        auth,
		ClientInfo:  client,
		DialTimeout: 2 * time.Second,
	}
}

// Start connects to the database, records the start of this server's activity
// and handles messages until abort is closed. If the server cannot be reached
// the returned Connection is not connected and ignores all messages.
func Start(opt *clickhouse.Options, activity *ActivityMessage, abort <-chan struct{}) *Connection {
	db := connect(opt)
	db.activityEntry = activity
	db.logActivity()
	if db.IsConnected() {
		go db.handleConnection(abort)
	}
	return db
}

// Dummy returns a Connection that is never connected.
func Dummy() *Connection {
	return &Connection{}
}

func connect(opt *clickhouse.Options) *Connection {
	db := &Connection{}
	conn, err := clickhouse.Open(opt)
	if err != nil {
		db.err = err
		return db
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = conn.Ping(ctx); err != nil {
		if exception, ok := err.(*clickhouse.Exception); ok {
			fmt.Printf("Exception [%d] %s \n%s\n", exception.Code, exception.Message, exception.StackTrace)
		}
		conn.Close()
		db.err = err
		return db
	}
	db.conn = conn
	db.configmsg = make(chan *ConfigChangeMessage, 16)
	db.Add(1)
	return db
}

func (db *Connection) logActivity() {
	if !db.IsConnected() || db.activityEntry == nil {
		return
	}
	ctx := context.Background()
	const nowait = false
	ae := db.activityEntry
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO emulatoractivity VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, nowait,
		ae.ID, ae.Hostname, ae.Githash, ae.Version, ae.GoVersion, ae.CPUs,
		ae.Start.Format(timeFormat), ae.End.Format(timeFormat),
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into emulatoractivity ", err)
		db.setErr(err)
	}
}

func (db *Connection) handleConnection(abort <-chan struct{}) {
	defer db.Done()
	for {
		select {
		case <-abort:
			db.disconnect()
			return
		case msg := <-db.configmsg:
			db.handleConfigChange(msg)
		}
	}
}

func (db *Connection) disconnect() {
	if db.IsConnected() {
		db.activityEntry.End = time.Now()
		db.logActivity()
	}
	if db.conn != nil {
		db.conn.Close()
	}
}

// RecordConfigChange stores msg in the DB (if it's open). It does not block.
func (db *Connection) RecordConfigChange(msg *ConfigChangeMessage) {
	if !db.IsConnected() || msg == nil {
		return
	}
	select {
	case db.configmsg <- msg:
	default:
		fmt.Println("activitydb: config change queue full; dropping a message")
	}
}

func (db *Connection) handleConfigChange(m *ConfigChangeMessage) {
	if !db.IsConnected() {
		return
	}
	ctx := context.Background()
	const nowait = false
	if err := db.conn.AsyncInsert(ctx, `INSERT INTO configchanges VALUES (?, ?, ?, ?, ?, ?, ?)`, nowait,
		db.activityEntry.ID, m.Time.Format(timeFormat), m.Disable, m.Type, m.Amplitude, m.Offset, m.Period,
	); err != nil {
		fmt.Println("Error raised on AsyncInsert into configchanges ", err)
		db.setErr(err)
	}
}
