// internal/daq/registers.go
package daq

// ProWaveDAQ register map.
// These values are fixed by the device firmware and MUST NOT be configurable.

// ---- REGISTERS ----

// RegSampleRate is the sample-rate setting register.
const RegSampleRate uint16 = 0x01

// RegFIFOLen is the FIFO depth register. It doubles as the base address
// for Normal Mode data reads.
const RegFIFOLen uint16 = 0x02

// RegChipID is the first of three chip identification registers.
const RegChipID uint16 = 0x80

// ---- BULK MODE ----

// BulkAddress is the base address for Bulk Mode data reads.
const BulkAddress uint16 = 0x15

// MaxBulkSize is the transfer block size advised by the device in Bulk Mode.
const MaxBulkSize uint16 = 9

// BulkTrigger is the Normal Mode read ceiling and the Bulk Mode switch
// threshold: buffer depths above it select Bulk Mode.
const BulkTrigger uint16 = 123

// ---- GEOMETRY ----

// ChannelCount is the number of interleaved channels per sample: X, Y, Z.
const ChannelCount = 3
