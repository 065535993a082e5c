// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package capture

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/juju/errors"
)

// DBusAPI exposes the subset of the systemd D-Bus connection the
// inventory needs.
type DBusAPI interface {
	ListUnitsContext(ctx context.Context) ([]dbus.UnitStatus, error)
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	GetUnitTypePropertiesContext(ctx context.Context, unit, unitType string) (map[string]interface{}, error)
	Close()
}

var NewDBusAPI = func(ctx context.Context) (DBusAPI, error) {
	return dbus.NewWithContext(ctx)
}

// ServiceInfo describes one service unit on the host.
type ServiceInfo struct {
	Name        string
	Description string
	LoadState   string
	ActiveState string
	SubState    string
	StartMode   string
	Account     string
	ExecPath    string
	MainPID     uint32
	ExitStatus  int32
}

// ListServices enumerates every .service unit over the system bus,
// sorted by unit name.
func ListServices(ctx context.Context) ([]ServiceInfo, error) {
	conn, err := NewDBusAPI(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "connecting to system bus")
	}
	defer conn.Close()

	units, err := conn.ListUnitsContext(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "listing units")
	}

	var services []ServiceInfo
	for _, unit := range units {
		if !strings.HasSuffix(unit.Name, ".service") {
			continue
		}
		info := ServiceInfo{
			Name:        unit.Name,
			Description: unit.Description,
			LoadState:   unit.LoadState,
			ActiveState: unit.ActiveState,
			SubState:    unit.SubState,
		}
		// A unit can vanish between the listing and the property
		// queries; such units keep empty detail fields.
		if props, err := conn.GetUnitPropertiesContext(ctx, unit.Name); err == nil {
			info.StartMode, _ = props["UnitFileState"].(string)
		} else {
			logger.Debugf("no unit properties for %q: %v", unit.Name, err)
		}
		if props, err := conn.GetUnitTypePropertiesContext(ctx, unit.Name, "Service"); err == nil {
			info.Account, _ = props["User"].(string)
			info.ExecPath = execStartPath(props)
			if pid, ok := props["MainPID"].(uint32); ok {
				info.MainPID = pid
			}
			if status, ok := props["ExecMainStatus"].(int32); ok {
				info.ExitStatus = status
			}
		} else {
			logger.Debugf("no service properties for %q: %v", unit.Name, err)
		}
		services = append(services, info)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].Name < services[j].Name })
	return services, nil
}

// execStartPath digs the executable path out of the ExecStart
// property, which arrives as an array of exec-command structs.
func execStartPath(props map[string]interface{}) string {
	commands, ok := props["ExecStart"].([][]interface{})
	if !ok || len(commands) == 0 || len(commands[0]) == 0 {
		return ""
	}
	path, _ := commands[0][0].(string)
	return path
}

var inventoryColumns = []string{
	"NAME", "DESCRIPTION", "LOAD", "ACTIVE", "SUB",
	"STARTMODE", "ACCOUNT", "EXECPATH", "PID", "EXITCODE",
}

// WriteInventory renders the services as a tab-separated table with a
// header row. Empty text fields render as "-" so every row keeps the
// full column count when eyeballed.
func WriteInventory(w io.Writer, services []ServiceInfo) error {
	if _, err := fmt.Fprintln(w, strings.Join(inventoryColumns, "\t")); err != nil {
		return errors.Trace(err)
	}
	for _, svc := range services {
		row := []string{
			cell(svc.Name),
			cell(svc.Description),
			cell(svc.LoadState),
			cell(svc.ActiveState),
			cell(svc.SubState),
			cell(svc.StartMode),
			cell(svc.Account),
			cell(svc.ExecPath),
			fmt.Sprint(svc.MainPID),
			fmt.Sprint(svc.ExitStatus),
		}
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

var cellCleaner = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")

// cell makes a value safe to embed in a tab-separated row.
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return cellCleaner.Replace(s)
}
