// Copyright (C) 2026  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package models

// DeliveryInfo is the metadata of a message accepted by the upstream server.
type DeliveryInfo struct {
	// Accepted are the recipients accepted by the upstream server.
	Accepted []string `json:"accepted" bson:"accepted"`
	// Rejected are the recipients rejected by the upstream server. The message was still
	// delivered to the accepted recipients.
	Rejected []string `json:"rejected,omitempty" bson:"rejected,omitempty"`
	// Response is the final reply text of the upstream server after the data transfer.
	Response string `json:"response" bson:"response"`
}
