// Command chunkctl calls the client API of a chunkdir node.
//
//	chunkctl -addr http://localhost:8080 heartbeat
//	chunkctl -addr http://localhost:8080 -file a.txt -chunk 1 -max 3 -addrs h1,h2 update
//	chunkctl -addr http://localhost:8080 -file a.txt -chunk 1 -msg <id> get
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/types"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Node base URL")
	file := flag.String("file", "", "File name")
	chunk := flag.Int64("chunk", 0, "Chunk id")
	msg := flag.String("msg", "", "Message id; generated for heartbeat and update when empty")
	maxChunks := flag.Int64("max", 0, "Total chunk count of the file")
	addrs := flag.String("addrs", "", "Comma-separated chunk server addresses")
	timeout := flag.Duration("timeout", 5*time.Second, "Request timeout")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: chunkctl [flags] heartbeat|update|get")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	client := transporthttp.NewAPIClient(strings.TrimRight(*addr, "/"))

	var out interface{}
	var err error
	switch flag.Arg(0) {
	case "heartbeat":
		out, err = client.Heartbeat(ctx, types.HeartbeatRequest{MessageID: messageID(*msg)})
	case "update":
		out, err = client.UpdateChunkLocations(ctx, types.UpdateChunkLocationsRequest{
			FileName:  *file,
			ChunkID:   *chunk,
			MessageID: messageID(*msg),
			MaxChunks: *maxChunks,
			Addresses: splitAddrs(*addrs),
		})
	case "get":
		if *msg == "" {
			log.Fatal("get needs -msg")
		}
		out, err = client.GetChunkLocations(ctx, types.FileData{FileName: *file, ChunkID: *chunk, MessageID: *msg})
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}

	if err != nil {
		var remote *transporthttp.RemoteError
		if errors.As(err, &remote) {
			log.Fatalf("%s: %s (%d)", remote.Code, remote.Msg, remote.Status)
		}
		log.Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(out)
}

func messageID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func splitAddrs(s string) []string {
	out := []string{}
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
