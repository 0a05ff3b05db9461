// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package extract

func exchange(_, _ string) error {
	return errExchangeUnsupported
}
