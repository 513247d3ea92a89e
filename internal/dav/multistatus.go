package dav

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"github.com/synccal/caldav-notebook-sync/pkg/model"
)

// ParseResources parses a multistatus reply into Resource records (C3): one
// per response element whose propstat branches are inspected for getetag,
// calendar-data, and status. A propstat with a non-200 status is ignored,
// not treated as a parse failure.
func ParseResources(body []byte) ([]model.Resource, error) {
	var ms multistatusXML
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	out := make([]model.Resource, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		href, err := url.PathUnescape(resp.Href)
		if err != nil {
			href = resp.Href
		}

		r := model.Resource{Href: href, Status: resp.Status}
		for _, ps := range resp.PropStats {
			if !isSuccessStatus(ps.Status) {
				continue
			}
			if ps.Prop.GetETag != "" {
				r.ETag = unquoteETag(ps.Prop.GetETag)
			}
			if ps.Prop.CalendarData != "" {
				r.Data = PreParseNormalize(ps.Prop.CalendarData)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func isSuccessStatus(status string) bool {
	if status == "" {
		return true // some servers omit propstat/status on a flat 200 response
	}
	return strings.Contains(status, " 200 ") || strings.HasSuffix(status, " 200")
}

func unquoteETag(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "W/")
	return strings.Trim(raw, `"`)
}

// ParseCalendarList parses a PROPFIND depth-1 calendar-enumeration reply
// into CalendarInfo records (C4 template 3). A response is a calendar only
// if some propstat's resourcetype contains calendar; other responses
// (including the home collection itself) are skipped.
func ParseCalendarList(body []byte) ([]model.CalendarInfo, error) {
	var ms multistatusXML
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}

	var out []model.CalendarInfo
	for _, resp := range ms.Responses {
		isCalendar := false
		for _, ps := range resp.PropStats {
			if !isSuccessStatus(ps.Status) {
				continue
			}
			if ps.Prop.ResourceType != nil && ps.Prop.ResourceType.Calendar != nil {
				isCalendar = true
			}
		}
		if !isCalendar {
			continue
		}

		href, err := url.PathUnescape(resp.Href)
		if err != nil {
			href = resp.Href
		}
		info := model.NewCalendarInfo(href)

		for _, ps := range resp.PropStats {
			if !isSuccessStatus(ps.Status) {
				continue
			}
			p := ps.Prop
			if p.DisplayName != "" {
				info.DisplayName = p.DisplayName
			}
			if p.CalendarColor != nil && p.CalendarColor.Value != "" {
				info.Color = normalizeColor(p.CalendarColor.Value)
			}
			if p.CurrentUserPrincipal != nil {
				info.UserPrincipal = p.CurrentUserPrincipal.Href
			}
			if p.CurrentUserPrivilegeSet != nil {
				info.Privileges = decodePrivileges(p.CurrentUserPrivilegeSet)
			}
			if p.SupportedCalendarComponentSet != nil {
				info.Components = decodeComponents(p.SupportedCalendarComponentSet)
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// normalizeColor truncates a 9-char "#RRGGBBAA" Apple calendar-color to the
// 7-char "#RRGGBB" form, stripping the alpha channel.
func normalizeColor(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) == 9 && raw[0] == '#' {
		return raw[:7]
	}
	return raw
}

func decodePrivileges(set *privilegeSetXML) model.Privilege {
	var p model.Privilege
	for _, priv := range set.Privileges {
		switch {
		case priv.All != nil:
			p |= model.PrivilegeAll
		default:
			if priv.Read != nil {
				p |= model.PrivilegeRead
			}
			if priv.Write != nil {
				p |= model.PrivilegeWrite
			}
			if priv.WriteProperties != nil {
				p |= model.PrivilegeWriteProperties
			}
			if priv.Unlock != nil {
				p |= model.PrivilegeUnlock
			}
			if priv.ReadACL != nil {
				p |= model.PrivilegeReadACL
			}
			if priv.ReadCurrentUserPrivilegeSet != nil {
				p |= model.PrivilegeReadCurrentUserPrivilegeSet
			}
			if priv.WriteACL != nil {
				p |= model.PrivilegeWriteACL
			}
			if priv.Bind != nil {
				p |= model.PrivilegeBind
			}
			if priv.Unbind != nil {
				p |= model.PrivilegeUnbind
			}
		}
	}
	if p == 0 {
		return model.DefaultPrivileges
	}
	return p
}

func decodeComponents(set *compSetXML) []model.ComponentKind {
	if len(set.Comps) == 0 {
		return model.AllComponentKinds
	}
	var out []model.ComponentKind
	for _, c := range set.Comps {
		switch strings.ToUpper(c.Name) {
		case "VEVENT":
			out = append(out, model.ComponentEvent)
		case "VTODO":
			out = append(out, model.ComponentTodo)
		case "VJOURNAL":
			out = append(out, model.ComponentJournal)
		}
	}
	if len(out) == 0 {
		return model.AllComponentKinds
	}
	return out
}

// PrincipalResult is the decoded outcome of the two-phase principal
// discovery.
type PrincipalResult struct {
	UserPrincipal string
	CalendarHome  string
	Mailto        string
}

// ParseCurrentUserPrincipal parses the phase-1 PROPFIND reply
// (current-user-principal).
func ParseCurrentUserPrincipal(body []byte) (string, error) {
	var ms multistatusXML
	if err := xml.Unmarshal(body, &ms); err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	for _, resp := range ms.Responses {
		for _, ps := range resp.PropStats {
			if !isSuccessStatus(ps.Status) {
				continue
			}
			if ps.Prop.CurrentUserPrincipal != nil && ps.Prop.CurrentUserPrincipal.Href != "" {
				return ps.Prop.CurrentUserPrincipal.Href, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no current-user-principal in response", ErrParseFailed)
}

// ParseAddressAndHomeSet parses the phase-2 PROPFIND reply
// (calendar-user-address-set + calendar-home-set). It prefers a
// preferred="1" href for the mailto address, and strips a leading
// "mailto:" prefix case-insensitively.
func ParseAddressAndHomeSet(body []byte) (mailto, home string, err error) {
	var ms multistatusXML
	if err := xml.Unmarshal(body, &ms); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	for _, resp := range ms.Responses {
		for _, ps := range resp.PropStats {
			if !isSuccessStatus(ps.Status) {
				continue
			}
			if ps.Prop.CalendarHomeSet != nil && ps.Prop.CalendarHomeSet.Href != "" {
				home = ps.Prop.CalendarHomeSet.Href
			}
			if ps.Prop.CalendarUserAddressSet != nil {
				mailto = pickMailto(ps.Prop.CalendarUserAddressSet)
			}
		}
	}
	return mailto, home, nil
}

func pickMailto(set *addressSetXML) string {
	var fallback string
	for _, h := range set.Hrefs {
		if !strings.HasPrefix(strings.ToLower(h.Value), "mailto:") {
			continue
		}
		stripped := h.Value[len("mailto:"):]
		if h.Preferred == "1" {
			return stripped
		}
		if fallback == "" {
			fallback = stripped
		}
	}
	return fallback
}
