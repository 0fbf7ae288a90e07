// Package kernels holds the kernel source documents, discovers the compute
// entry points they declare and binds those entry points to a backend.
package kernels

import (
	_ "embed"
)

// Entry point names. The pooling document declares the first five, the hash
// document declares HashData only.
const (
	SumPool         = "sum_pool"
	MaxPool         = "max_pool"
	Maxout          = "maxout"
	BackpropSumPool = "backprop_sum_pool"
	BackpropMaxPool = "backprop_max_pool"
	HashData        = "hash_data"
)

// PoolEntryPoints lists the names the pooling document must declare.
var PoolEntryPoints = []string{SumPool, MaxPool, Maxout, BackpropSumPool, BackpropMaxPool}

// HashEntryPoints lists the names the hash document must declare.
var HashEntryPoints = []string{HashData}

//go:embed src/pool.wgsl
var poolSource string

//go:embed src/murmur3.wgsl
var hashSource string

// Document is a named kernel source text.
type Document struct {
	Name   string
	Source string
}

// PoolDocument returns the built-in pooling kernel document.
func PoolDocument() Document {
	return Document{Name: "pool.wgsl", Source: poolSource}
}

// HashDocument returns the built-in hash kernel document.
func HashDocument() Document {
	return Document{Name: "murmur3.wgsl", Source: hashSource}
}
