// Command shipfeed is a small demo that feeds a live or replayed AIS NMEA
// stream into an index.Index[uint32] keyed by MMSI, printing ships that
// enter a watch area. It exists to exercise the domain stack end to end,
// not as a production ingester.
package main

import (
	"bufio"
	"flag"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	ais "github.com/andmarios/aislib"
	"github.com/cenkalti/backoff"

	"github.com/tormol/rtree/geo"
	"github.com/tormol/rtree/index"
	"github.com/tormol/rtree/logger"
)

var sourceAddr = flag.String("source", "153.44.253.27:5631", "ip:port of the AIS NMEA TCP source")

// watchArea is the bounding box around Stavanger that triggers a log line
// when a ship's position falls inside it.
var watchArea = geo.NewRectangle(
	geo.Microdegrees(5.3), geo.Microdegrees(58.8),
	geo.Microdegrees(6.2), geo.Microdegrees(59.5),
)

// fleet tracks each known ship's last indexed rectangle, so a position
// update can Delete the old entry before Add-ing the new one: the index
// façade has no in-place Update.
type fleet struct {
	mu   sync.Mutex
	rect map[uint32]geo.Rectangle
}

func newFleet() *fleet { return &fleet{rect: make(map[uint32]geo.Rectangle)} }

func (f *fleet) moveTo(ix *index.Index[uint32], log *logger.Logger, mmsi uint32, r geo.Rectangle) {
	f.mu.Lock()
	old, known := f.rect[mmsi]
	f.rect[mmsi] = r
	f.mu.Unlock()

	if known {
		if removed, err := ix.Delete(old, mmsi); err != nil {
			log.Warning("shipfeed: could not remove stale position for MMSI %d: %s", mmsi, err)
		} else if !removed {
			log.Debug("shipfeed: stale position for MMSI %d already gone", mmsi)
		}
	}
	if err := ix.Add(r, mmsi); err != nil {
		log.Warning("shipfeed: could not index MMSI %d: %s", mmsi, err)
	}
}

// newSourceBackoff gives up reconnecting to a dead source after a day,
// backing off from 5s to 1h between tries.
func newSourceBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 1 * time.Hour
	b.MaxElapsedTime = 24 * time.Hour
	b.Reset()
	return b
}

func dialWithRetry(log *logger.Logger, addr string) *net.TCPConn {
	resolved, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		log.Fatal("shipfeed: cannot resolve %s: %s", addr, err)
	}

	b := newSourceBackoff()
	for {
		conn, err := net.DialTCP("tcp", nil, resolved)
		if err == nil {
			b.Reset()
			return conn
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			log.Fatal("shipfeed: giving up connecting to %s: %s", addr, err)
		}
		log.Warning("shipfeed: connecting to %s failed (%s), retrying in %s", addr, err, wait)
		time.Sleep(wait)
	}
}

// feed reads NMEA sentences from conn and forwards them to aislib's router
// until the connection closes, then signals done.
func feed(conn *net.TCPConn, sentences chan<- string, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			sentences <- line
		}
	}
}

func handle(ix *index.Index[uint32], fl *fleet, log *logger.Logger, messages <-chan ais.Message, failed <-chan ais.FailedSentence) {
	for {
		select {
		case m := <-messages:
			switch m.Type {
			case 1, 2, 3:
				report, err := ais.DecodeClassAPositionReport(m.Payload)
				if err != nil {
					log.Debug("shipfeed: bad class A position report: %s", err)
					continue
				}
				rect := geo.PointRectangle(report.Lat, report.Lon)
				fl.moveTo(ix, log, report.MMSI, rect)
				reportIfWatched(ix, log, report.MMSI, rect)
			case 18:
				report, err := ais.DecodeClassBPositionReport(m.Payload)
				if err != nil {
					log.Debug("shipfeed: bad class B position report: %s", err)
					continue
				}
				rect := geo.PointRectangle(report.Lat, report.Lon)
				fl.moveTo(ix, log, report.MMSI, rect)
				reportIfWatched(ix, log, report.MMSI, rect)
			case 5:
				_, err := ais.DecodeStaticVoyageData(m.Payload)
				if err != nil {
					log.Debug("shipfeed: bad static voyage data: %s", err)
				}
				// Name/destination tracking is out of scope for this demo;
				// the position reports are what exercise the index.
			}
		case f := <-failed:
			log.Debug("shipfeed: undecodable sentence: %v", f)
		}
	}
}

func reportIfWatched(ix *index.Index[uint32], log *logger.Logger, mmsi uint32, rect geo.Rectangle) {
	if !watchArea.Intersects(rect) {
		return
	}
	count, err := ix.Count()
	if err != nil {
		log.Warning("shipfeed: count failed: %s", err)
		return
	}
	log.Info("shipfeed: MMSI %d entered the watch area (%d ships tracked)", mmsi, count)
}

func main() {
	flag.Parse()
	log := logger.NewLogger(os.Stderr, logger.Info)
	defer log.Close()

	ix, err := index.New[uint32](index.WithLogger[uint32](log))
	if err != nil {
		log.Fatal("shipfeed: building index: %s", err)
	}
	defer ix.Close()
	fl := newFleet()

	conn := dialWithRetry(log, *sourceAddr)
	defer conn.Close()

	sentences := make(chan string, 1024)
	messages := make(chan ais.Message, 1024)
	failedSentences := make(chan ais.FailedSentence, 1024)
	done := make(chan struct{})

	go ais.Router(sentences, messages, failedSentences)
	go feed(conn, sentences, done)

	log.Info("shipfeed: watching %s for traffic in the bounding box", *sourceAddr)
	go handle(ix, fl, log, messages, failedSentences)
	<-done
	log.Info("shipfeed: source connection closed")
}
