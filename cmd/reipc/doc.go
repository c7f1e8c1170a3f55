// Command reipc issues JSON-RPC calls over a node's IPC socket.
//
//	reipc --socket /tmp/geth.ipc call eth_blockNumber
//	reipc call eth_getBlockByNumber '["latest", false]'
//	reipc bench eth_chainId --concurrency 100 --requests 10000
//
// Settings come from reipc.toml (see package config), overridden by the
// RPC_SOCKET environment variable and then by flags.
package main
